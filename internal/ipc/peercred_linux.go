//go:build linux

package ipc

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentialsOf reads SO_PEERCRED.
func PeerCredentialsOf(conn net.Conn) (*PeerCredentials, error) {
	var cred *PeerCredentials
	err := withFD(conn, func(fd int) error {
		uc, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			return fmt.Errorf("ipc: SO_PEERCRED: %w", err)
		}
		cred = &PeerCredentials{PID: int(uc.Pid), UID: int(uc.Uid), GID: int(uc.Gid)}
		return nil
	})
	return cred, err
}

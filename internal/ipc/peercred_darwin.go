//go:build darwin

package ipc

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentialsOf reads LOCAL_PEERCRED. The pid is not reported.
func PeerCredentialsOf(conn net.Conn) (*PeerCredentials, error) {
	var cred *PeerCredentials
	err := withFD(conn, func(fd int) error {
		xu, err := unix.GetsockoptXucred(fd, unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
		if err != nil {
			return fmt.Errorf("ipc: LOCAL_PEERCRED: %w", err)
		}
		cred = &PeerCredentials{UID: int(xu.Uid)}
		if xu.Ngroups > 0 {
			cred.GID = int(xu.Groups[0])
		}
		return nil
	})
	return cred, err
}

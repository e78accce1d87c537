package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrPeerCredentialsUnsupported is returned where the platform cannot
// report who is on the other end of a socket.
var ErrPeerCredentialsUnsupported = errors.New("ipc: peer credentials not supported on this platform")

// PeerCredentials identifies the process on the other end of a socket.
// PID is 0 where the platform does not report it.
type PeerCredentials struct {
	PID int
	UID int
	GID int
}

// PeerIsCurrentUser reports whether the peer runs as this process's user.
func PeerIsCurrentUser(conn net.Conn) (bool, error) {
	cred, err := PeerCredentialsOf(conn)
	if err != nil {
		return false, err
	}
	return cred.UID == os.Getuid(), nil
}

// withFD runs fn on the socket descriptor of a unix connection.
func withFD(conn net.Conn, fn func(fd int) error) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("ipc: %T is not a unix connection", conn)
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return fmt.Errorf("ipc: raw conn: %w", err)
	}
	var fnErr error
	if err := raw.Control(func(fd uintptr) { fnErr = fn(int(fd)) }); err != nil {
		return fmt.Errorf("ipc: control: %w", err)
	}
	return fnErr
}

// CleanupSocket removes a stale socket file. Anything else at path is
// left alone and reported.
func CleanupSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("ipc: %s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// IsSocketListening reports whether something accepts connections at path.
func IsSocketListening(path string) bool {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

//go:build !linux && !darwin

package ipc

import "net"

// PeerCredentialsOf is not available on this platform.
func PeerCredentialsOf(net.Conn) (*PeerCredentials, error) {
	return nil, ErrPeerCredentialsUnsupported
}

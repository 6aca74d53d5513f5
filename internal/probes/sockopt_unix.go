//go:build !windows

package probes

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setTTL returns a dialer control function that sets the IP TTL of the socket.
func setTTL(ttl int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if ttl <= 0 {
			return nil
		}
		var opErr error
		err := c.Control(func(fd uintptr) {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl)
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

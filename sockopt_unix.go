//go:build unix

package framer

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// receiveBufferControl sets SO_RCVBUF on the listening socket before bind, so
// accepted connections inherit it and the TCP window scale is negotiated for it.
func receiveBufferControl(size int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
		})
		if err != nil {
			return err
		}
		return errors.Wrapf(serr, "set SO_RCVBUF=%d", size)
	}
}

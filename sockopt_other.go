//go:build !unix

package framer

import "syscall"

// The hint is only honored on unix; elsewhere accepted connections are tuned
// with SetReadBuffer instead.
func receiveBufferControl(int) func(network, address string, c syscall.RawConn) error {
	return nil
}

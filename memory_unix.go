//go:build unix

package framer

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func allocDirect(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Errorf("framer: invalid direct buffer size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %d bytes", size)
	}
	return data, nil
}

func freeDirect(data []byte) error {
	return errors.Wrap(unix.Munmap(data), "munmap")
}

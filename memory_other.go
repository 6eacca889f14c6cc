//go:build !unix

package framer

import "github.com/pkg/errors"

// Without mmap, direct buffers degrade to heap slices.
func allocDirect(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Errorf("framer: invalid direct buffer size %d", size)
	}
	return make([]byte, size), nil
}

func freeDirect([]byte) error { return nil }

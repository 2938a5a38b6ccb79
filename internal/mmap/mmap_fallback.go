//go:build !unix

package mmap

import "fmt"

// Anon allocates size bytes on the Go heap when anonymous mappings are not
// available.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}

// Supported reports whether Anon returns a real mapping on this platform.
func Supported() bool { return false }

//go:build unix

// Package arena provides the raw memory that backs a managed address space.
package arena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map reserves size bytes of zeroed, private, anonymous memory outside the Go heap.
// The returned release function unmaps it; calling it twice is a no-op.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("arena: invalid size %d", size)
	}
	size = roundPages(size)
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		return err
	}
	return data, release, nil
}

// PageSize returns the host page size.
func PageSize() int {
	return unix.Getpagesize()
}

func roundPages(n int) int {
	ps := PageSize()
	return (n + ps - 1) / ps * ps
}

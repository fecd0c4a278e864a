//go:build !unix

// Package arena provides the raw memory that backs a managed address space.
package arena

import "fmt"

const fallbackPageSize = 4096

// Map allocates size zeroed bytes on the Go heap when mmap is not available.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("arena: invalid size %d", size)
	}
	size = (size + fallbackPageSize - 1) / fallbackPageSize * fallbackPageSize
	return make([]byte, size), func() error { return nil }, nil
}

// PageSize returns the page size used for rounding.
func PageSize() int {
	return fallbackPageSize
}

package space

import "errors"

var (
	// ErrOutOfRange indicates an access outside the mapped address range.
	ErrOutOfRange = errors.New("space: address out of range")

	// ErrMisaligned indicates a word access at an address that is not word aligned.
	ErrMisaligned = errors.New("space: misaligned address")
)

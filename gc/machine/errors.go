package machine

import "errors"

var (
	// ErrLayout indicates an unusable address-space layout.
	ErrLayout = errors.New("machine: invalid layout")

	// ErrNoRegion indicates an address the host has no stack region for.
	ErrNoRegion = errors.New("machine: no region contains address")

	// ErrRegister indicates a register index outside the register file.
	ErrRegister = errors.New("machine: invalid register")

	// ErrGlobal indicates a global slot outside the data segment.
	ErrGlobal = errors.New("machine: invalid global slot")

	// ErrStackOverflow indicates the stack has no room left.
	ErrStackOverflow = errors.New("machine: stack overflow")

	// ErrStackUnderflow indicates a pop or release past the stack base.
	ErrStackUnderflow = errors.New("machine: stack underflow")
)

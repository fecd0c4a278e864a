package rootset

import "errors"

var (
	// ErrRootDiscovery indicates the host could not report the stack or data
	// region. Without them no collection can be safe.
	ErrRootDiscovery = errors.New("rootset: root discovery failed")

	// ErrStackPointer indicates the stack pointer lies outside the recorded stack region.
	ErrStackPointer = errors.New("rootset: stack pointer outside stack region")
)

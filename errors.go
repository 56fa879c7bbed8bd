package fluid

import (
	"errors"

	"github.com/gogpu/fluid/pass"
)

// Errors returned by the solver. Wrapped errors keep the underlying device
// text; use errors.Is to classify them.
var (
	// ErrUnsupportedPlatform is returned by New when the requested device
	// is not registered or cannot provide float32 compute storage. The
	// solver never falls back to another device on its own.
	ErrUnsupportedPlatform = pass.ErrUnsupported

	// ErrKernelCompile is returned by New when a kernel program fails to
	// compile on the selected device.
	ErrKernelCompile = pass.ErrKernelCompile

	// ErrContextLost is returned once the device reports that its execution
	// context is gone. The solver stays unusable afterwards; Close it and
	// construct a new one.
	ErrContextLost = pass.ErrDeviceLost

	// ErrClosed is returned by operations on a closed solver.
	ErrClosed = errors.New("fluid: solver closed")

	// ErrNotAllocated is returned by Step, Inject, Field and Load after a
	// Resize or Reset failed to allocate the fields. A later successful
	// Resize or Reset clears it.
	ErrNotAllocated = errors.New("fluid: fields not allocated")
)

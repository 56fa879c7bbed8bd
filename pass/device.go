package pass

import "errors"

// ErrSize is returned by Read and Write when the slice length does not match
// width × height × channels of the field.
var ErrSize = errors.New("pass: buffer length does not match field size")

// Device owns the field storage and executes kernel passes over it.
//
// All fields share the simulation resolution set by Allocate. A device is
// driven from a single goroutine; implementations take no locks on the
// pass path.
type Device interface {
	// Name identifies the device in the registry ("cpu", "wgpu").
	Name() string

	// Allocate destroys any existing storage and creates zero-filled
	// fields of the given size.
	Allocate(width, height int) error

	// Size returns the allocated simulation size, or 0, 0.
	Size() (width, height int)

	// RunPass executes kernel k once per cell of dst. The device may defer
	// execution until Flush; passes always run in submission order.
	RunPass(k Kernel, src Sources, dst FieldID, u Uniforms) error

	// Swap exchanges the read and write sides of a double-buffered field.
	// It panics for a single-buffered field.
	Swap(f FieldID)

	// Flush waits until every submitted pass has completed.
	Flush() error

	// Read copies the read side of f into dst.
	Read(f FieldID, dst []float32) error

	// Write replaces the read side of f with src.
	Write(f FieldID, src []float32) error

	// Release destroys all field storage. The device can be allocated again.
	Release()

	// Close releases storage and any device resources.
	Close() error
}

// Len returns the number of float32 values a field of the given size holds.
func Len(f FieldID, width, height int) int {
	return width * height * f.Channels()
}

// Device failure classes. Devices wrap these with %w so callers can tell
// them apart with errors.Is.
var (
	// ErrUnsupported reports that the platform cannot provide float32
	// storage with compute execution.
	ErrUnsupported = errors.New("fluid: float32 compute storage unsupported on this platform")

	// ErrKernelCompile reports that a kernel program failed to compile.
	ErrKernelCompile = errors.New("fluid: kernel compilation failed")

	// ErrDeviceLost reports that the execution context was invalidated.
	ErrDeviceLost = errors.New("fluid: execution context lost")
)

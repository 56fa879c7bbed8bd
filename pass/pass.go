// Package pass defines the vocabulary shared by the solver and the devices
// that execute it: the simulation fields, the per-cell kernels, the uniform
// block handed to every kernel and the Device contract.
//
// A pass applies one kernel to every cell of a destination field. The
// destination is bound write-only (the write side of a double-buffered
// field, or the only buffer of a single-buffered one) and each named source
// is bound read-only (the read side). Kernels never read their own output
// within a pass, so the per-cell work is free to run in any order.
package pass

import "fmt"

// FieldID names one of the simulation fields.
type FieldID uint8

const (
	// Velocity is the 2-channel velocity field, in cells per second.
	Velocity FieldID = iota
	// Pressure is the scalar pressure field solved each step.
	Pressure
	// Divergence is the scalar divergence of the advected velocity.
	Divergence
	// Curl is the scalar vorticity of the velocity field.
	Curl
	// Dye is the 3-channel passive color field.
	Dye

	fieldCount
)

// Fields lists every field in allocation order.
func Fields() []FieldID {
	return []FieldID{Velocity, Pressure, Divergence, Curl, Dye}
}

// Channels returns the number of float32 components per cell.
func (f FieldID) Channels() int {
	switch f {
	case Velocity:
		return 2
	case Dye:
		return 3
	default:
		return 1
	}
}

// DoubleBuffered reports whether the field keeps a read and a write side.
// Divergence and Curl are recomputed from scratch each step and never read
// while being written, so they use a single buffer.
func (f FieldID) DoubleBuffered() bool {
	return f == Velocity || f == Pressure || f == Dye
}

// Valid reports whether f names a known field.
func (f FieldID) Valid() bool { return f < fieldCount }

func (f FieldID) String() string {
	switch f {
	case Velocity:
		return "velocity"
	case Pressure:
		return "pressure"
	case Divergence:
		return "divergence"
	case Curl:
		return "curl"
	case Dye:
		return "dye"
	default:
		return fmt.Sprintf("FieldID(%d)", uint8(f))
	}
}

// Kernel identifies a per-cell program.
type Kernel uint8

const (
	// KernelCurl computes curl = (R.y - L.y) - (T.x - B.x).
	KernelCurl Kernel = iota
	// KernelVorticity adds the vorticity confinement force to velocity.
	KernelVorticity
	// KernelAdvect moves a field along velocity by semi-Lagrangian backtrace.
	KernelAdvect
	// KernelDivergence computes 0.5 * ((R.x - L.x) + (T.y - B.y)).
	KernelDivergence
	// KernelClear scales a field by a constant, used to decay pressure.
	KernelClear
	// KernelJacobi runs one Jacobi iteration of the pressure Poisson equation.
	KernelJacobi
	// KernelGradient subtracts the pressure gradient from velocity.
	KernelGradient
	// KernelSplat adds a Gaussian injection to a field.
	KernelSplat

	kernelCount
)

// Kernels lists every kernel.
func Kernels() []Kernel {
	ks := make([]Kernel, 0, kernelCount)
	for k := range kernelCount {
		ks = append(ks, k)
	}
	return ks
}

// Source binding names.
const (
	SrcVelocity   = "velocity"
	SrcCurl       = "curl"
	SrcPressure   = "pressure"
	SrcDivergence = "divergence"
	SrcSource     = "source"
)

// Sources returns the source names the kernel reads, in binding order.
func (k Kernel) Sources() []string {
	switch k {
	case KernelCurl, KernelDivergence:
		return []string{SrcVelocity}
	case KernelVorticity:
		return []string{SrcVelocity, SrcCurl}
	case KernelAdvect:
		return []string{SrcVelocity, SrcSource}
	case KernelJacobi:
		return []string{SrcPressure, SrcDivergence}
	case KernelGradient:
		return []string{SrcPressure, SrcVelocity}
	case KernelClear, KernelSplat:
		return []string{SrcSource}
	default:
		return nil
	}
}

func (k Kernel) String() string {
	switch k {
	case KernelCurl:
		return "curl"
	case KernelVorticity:
		return "vorticity"
	case KernelAdvect:
		return "advect"
	case KernelDivergence:
		return "divergence"
	case KernelClear:
		return "clear"
	case KernelJacobi:
		return "jacobi"
	case KernelGradient:
		return "gradient"
	case KernelSplat:
		return "splat"
	default:
		return fmt.Sprintf("Kernel(%d)", uint8(k))
	}
}

// Sources binds source names to fields for one pass.
type Sources map[string]FieldID

// Uniforms is the constant block every kernel receives. Fields a kernel
// does not use are ignored.
type Uniforms struct {
	// TexelX and TexelY are 1/width and 1/height of the simulation grid.
	TexelX, TexelY float32
	// Dt is the step in seconds.
	Dt float32
	// Dissipation multiplies advected values (1 keeps them unchanged).
	Dissipation float32
	// Strength is the vorticity confinement scale for KernelVorticity and
	// the decay factor for KernelClear.
	Strength float32
	// Aspect is width/height; splat distances scale x by it.
	Aspect float32
	// Point is the splat center in normalized coordinates.
	Point [2]float32
	// Radius is the splat radius in normalized units.
	Radius float32
	// Value is the splat amount per channel.
	Value [4]float32
}

// Validate panics when a pass violates the binding contract: an unknown
// kernel or field, a missing source, or a single-buffered destination that
// is also bound as a source. Devices call it at the top of RunPass.
func Validate(k Kernel, src Sources, dst FieldID) {
	if k >= kernelCount {
		panic(fmt.Sprintf("pass: unknown kernel %v", k))
	}
	if !dst.Valid() {
		panic(fmt.Sprintf("pass: %v: unknown destination %v", k, dst))
	}
	for _, name := range k.Sources() {
		f, ok := src[name]
		if !ok {
			panic(fmt.Sprintf("pass: %v: missing source %q", k, name))
		}
		if !f.Valid() {
			panic(fmt.Sprintf("pass: %v: source %q names unknown field %v", k, name, f))
		}
		if f == dst && !dst.DoubleBuffered() {
			panic(fmt.Sprintf("pass: %v: %v is both source and destination", k, dst))
		}
	}
	switch k {
	case KernelAdvect, KernelClear, KernelSplat:
		if src[SrcSource] != dst {
			panic(fmt.Sprintf("pass: %v: source %v must match destination %v", k, src[SrcSource], dst))
		}
	}
}

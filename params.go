package fluid

// Parameter ranges. Values outside are clamped, never rejected.
const (
	// MaxStep is the largest dt a single Step integrates, in seconds.
	MaxStep = 0.033

	// MinQuality and MaxQuality bound the simulation resolution scale.
	MinQuality = 0.25
	MaxQuality = 1.0

	// MinSimSize and MinBackingSize are the per-axis floors of the
	// simulation grid and the display backing store.
	MinSimSize     = 16
	MinBackingSize = 2

	// MinSplatRadius replaces non-positive splat radii.
	MinSplatRadius = 1e-6

	minDissipation     = 1e-3
	maxPressureIters   = 500
	defaultMaxPixelDPR = 2.0
)

// Params is the immutable set of numerical settings a step runs with.
// Params is a plain value: to change a setting build a new Params and hand
// it to SetParams or Advance. A step never observes a half-updated Params.
type Params struct {
	// DyeDissipation multiplies dye on every advection, in (0, 1].
	DyeDissipation float64 `json:"dye_dissipation"`

	// VelocityDissipation multiplies velocity on every advection, in (0, 1].
	VelocityDissipation float64 `json:"velocity_dissipation"`

	// PressureIterations is the Jacobi iteration count per step, at least 1.
	PressureIterations int `json:"pressure_iterations"`

	// PressureDecay scales the previous step's pressure before the Jacobi
	// solve, in [0, 1]. 0 starts each solve from zero pressure.
	PressureDecay float64 `json:"pressure_decay"`

	// Curl is the vorticity confinement strength. 0 disables confinement.
	Curl float64 `json:"curl"`

	// SplatRadius is the default normalized injection radius.
	SplatRadius float64 `json:"splat_radius"`

	// MaxPixelRatio caps the device pixel ratio used for sizing.
	MaxPixelRatio float64 `json:"max_pixel_ratio"`
}

// DefaultParams returns the settings the solver uses when no option
// overrides them.
func DefaultParams() Params {
	return Params{
		DyeDissipation:      0.98,
		VelocityDissipation: 0.99,
		PressureIterations:  20,
		PressureDecay:       0.8,
		Curl:                30,
		SplatRadius:         0.05,
		MaxPixelRatio:       defaultMaxPixelDPR,
	}
}

// Clamped returns p with every field forced into its valid range.
func (p Params) Clamped() Params {
	p.DyeDissipation = clamp(p.DyeDissipation, minDissipation, 1)
	p.VelocityDissipation = clamp(p.VelocityDissipation, minDissipation, 1)
	p.PressureIterations = min(max(p.PressureIterations, 1), maxPressureIters)
	p.PressureDecay = clamp(p.PressureDecay, 0, 1)
	p.Curl = max(p.Curl, 0)
	if !(p.SplatRadius > 0) {
		p.SplatRadius = MinSplatRadius
	}
	if !(p.MaxPixelRatio > 0) {
		p.MaxPixelRatio = 1
	}
	return p
}

// clamp also maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

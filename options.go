package fluid

import "github.com/gogpu/gpucontext"

// Option configures a Solver during creation.
//
// Example:
//
//	s, err := fluid.New(fluid.Surface{Width: 800, Height: 600, PixelRatio: 2},
//	    fluid.WithPressureIterations(30),
//	    fluid.WithCurl(20),
//	)
type Option func(*options)

type options struct {
	params   Params
	quality  float64
	device   string
	provider gpucontext.DeviceProvider
	workers  int
}

func defaultOptions() options {
	return options{
		params:  DefaultParams(),
		quality: MaxQuality,
	}
}

// WithParams replaces all numerical settings at once.
func WithParams(p Params) Option {
	return func(o *options) {
		o.params = p
	}
}

// WithDyeDissipation sets the per-advection dye multiplier, in (0, 1].
func WithDyeDissipation(v float64) Option {
	return func(o *options) {
		o.params.DyeDissipation = v
	}
}

// WithVelocityDissipation sets the per-advection velocity multiplier, in (0, 1].
func WithVelocityDissipation(v float64) Option {
	return func(o *options) {
		o.params.VelocityDissipation = v
	}
}

// WithPressureIterations sets the Jacobi iteration count per step.
func WithPressureIterations(n int) Option {
	return func(o *options) {
		o.params.PressureIterations = n
	}
}

// WithPressureDecay sets the factor applied to the previous pressure before
// each solve.
func WithPressureDecay(v float64) Option {
	return func(o *options) {
		o.params.PressureDecay = v
	}
}

// WithCurl sets the vorticity confinement strength. 0 disables it.
func WithCurl(v float64) Option {
	return func(o *options) {
		o.params.Curl = v
	}
}

// WithSplatRadius sets the default normalized splat radius.
func WithSplatRadius(r float64) Option {
	return func(o *options) {
		o.params.SplatRadius = r
	}
}

// WithMaxPixelRatio caps the device pixel ratio used for sizing.
func WithMaxPixelRatio(v float64) Option {
	return func(o *options) {
		o.params.MaxPixelRatio = v
	}
}

// WithQuality sets the initial resolution scale, clamped to [0.25, 1].
func WithQuality(q float64) Option {
	return func(o *options) {
		o.quality = q
	}
}

// WithDevice selects a registered device by name ("cpu", "wgpu").
// Without it the highest-priority registered device is used.
func WithDevice(name string) Option {
	return func(o *options) {
		o.device = name
	}
}

// WithDeviceProvider shares an existing GPU device with the solver instead
// of opening a new one. Devices that cannot use the provider ignore it.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithWorkers sets the worker count of the CPU device. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

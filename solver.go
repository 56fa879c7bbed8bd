package fluid

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/fluid/pass"
)

// Target selects the field an injection writes to.
type Target uint8

const (
	// TargetVelocity adds to velocity; the first two value components are used.
	TargetVelocity Target = iota
	// TargetDye adds to dye; all three value components are used.
	TargetDye
)

func (t Target) field() pass.FieldID {
	if t == TargetVelocity {
		return pass.Velocity
	}
	return pass.Dye
}

func (t Target) String() string {
	if t == TargetVelocity {
		return "velocity"
	}
	return "dye"
}

// Injection is one Gaussian splat.
type Injection struct {
	// Point is the center in normalized coordinates, (0,0) at the first cell.
	Point [2]float64
	// Value is the amount added at the center: a velocity delta in cells
	// per second or a dye color.
	Value [3]float64
	// Radius is the normalized falloff radius. Values ≤ 0 are clamped to a
	// tiny positive radius.
	Radius float64
	Target Target
}

// Solver advances an incompressible 2D flow and the dye it carries.
//
// A Solver is driven from one goroutine: Step, Splat, Resize and Reset must
// not be called concurrently. Passes swap double buffers only at pass
// boundaries, so the read side of every field always holds a complete state.
type Solver struct {
	dev    pass.Device
	log    *slog.Logger
	params Params

	surface Surface
	quality float64
	sim     size
	backing size

	steps  uint64
	err    error
	closed bool
}

// New creates a solver for the given display surface.
//
// The device is the one named by WithDevice, or the highest-priority
// registered device. If it cannot be opened New returns an error wrapping
// ErrUnsupportedPlatform or ErrKernelCompile; there is no fallback.
func New(surface Surface, opts ...Option) (*Solver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	log := Logger()
	dev, err := openDevice(o.device, DeviceConfig{
		Workers:  o.workers,
		Provider: o.provider,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	propagateLogger(dev, log)

	s := &Solver{
		dev:     dev,
		log:     log,
		params:  o.params.Clamped(),
		surface: surface,
		quality: clamp(o.quality, MinQuality, MaxQuality),
	}
	sim, backing := s.layout()
	if err := s.allocate(sim, backing); err != nil {
		_ = dev.Close()
		return nil, err
	}

	log.Info("fluid: solver created",
		"device", dev.Name(),
		"sim", sim.String(),
		"backing", backing.String(),
		"iterations", s.params.PressureIterations)
	return s, nil
}

// Device returns the name of the device executing the passes.
func (s *Solver) Device() string { return s.dev.Name() }

// Params returns the current settings.
func (s *Solver) Params() Params { return s.params }

// SetParams replaces the settings used by subsequent Step calls.
func (s *Solver) SetParams(p Params) { s.params = p.Clamped() }

// Steps returns the number of completed steps.
func (s *Solver) Steps() uint64 { return s.steps }

// Err returns the latched device failure, if any.
func (s *Solver) Err() error { return s.err }

// Step advances the simulation by dt seconds with the current Params.
// dt is clamped to [0, MaxStep].
func (s *Solver) Step(dt float64) error {
	return s.Advance(s.params, dt)
}

// Advance advances the simulation by dt seconds with the given Params.
// The pass order is fixed: curl, vorticity confinement, velocity
// advection, divergence, pressure decay and Jacobi iterations, gradient
// subtraction, dye advection.
func (s *Solver) Advance(p Params, dt float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	p = p.Clamped()
	u := s.uniforms()
	u.Dt = float32(clamp(dt, 0, MaxStep))

	run := func(k pass.Kernel, src pass.Sources, dst pass.FieldID, u pass.Uniforms) error {
		if err := s.dev.RunPass(k, src, dst, u); err != nil {
			return fmt.Errorf("fluid: %v pass: %w", k, err)
		}
		if dst.DoubleBuffered() {
			s.dev.Swap(dst)
		}
		return nil
	}

	err := func() error {
		if err := run(pass.KernelCurl, pass.Sources{pass.SrcVelocity: pass.Velocity}, pass.Curl, u); err != nil {
			return err
		}

		if p.Curl > 0 {
			vu := u
			vu.Strength = float32(p.Curl)
			src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcCurl: pass.Curl}
			if err := run(pass.KernelVorticity, src, pass.Velocity, vu); err != nil {
				return err
			}
		}

		au := u
		au.Dissipation = float32(p.VelocityDissipation)
		src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Velocity}
		if err := run(pass.KernelAdvect, src, pass.Velocity, au); err != nil {
			return err
		}

		if err := run(pass.KernelDivergence, pass.Sources{pass.SrcVelocity: pass.Velocity}, pass.Divergence, u); err != nil {
			return err
		}

		cu := u
		cu.Strength = float32(p.PressureDecay)
		if err := run(pass.KernelClear, pass.Sources{pass.SrcSource: pass.Pressure}, pass.Pressure, cu); err != nil {
			return err
		}

		jacobi := pass.Sources{pass.SrcPressure: pass.Pressure, pass.SrcDivergence: pass.Divergence}
		for range p.PressureIterations {
			if err := run(pass.KernelJacobi, jacobi, pass.Pressure, u); err != nil {
				return err
			}
		}

		src = pass.Sources{pass.SrcPressure: pass.Pressure, pass.SrcVelocity: pass.Velocity}
		if err := run(pass.KernelGradient, src, pass.Velocity, u); err != nil {
			return err
		}

		du := u
		du.Dissipation = float32(p.DyeDissipation)
		src = pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Dye}
		if err := run(pass.KernelAdvect, src, pass.Dye, du); err != nil {
			return err
		}

		return s.dev.Flush()
	}()
	if err != nil {
		return s.abort(err)
	}
	s.steps++
	return nil
}

// Splat adds value × exp(−d²/radius²) to every cell of the target field,
// d being the distance from the cell center to point with x scaled by the
// aspect ratio. Splats accumulate; they never overwrite.
func (s *Solver) Splat(point [2]float64, value [3]float64, radius float64, target Target) error {
	return s.Inject(Injection{Point: point, Value: value, Radius: radius, Target: target})
}

// SplatDefault is Splat with the configured default radius.
func (s *Solver) SplatDefault(point [2]float64, value [3]float64, target Target) error {
	return s.Splat(point, value, s.params.SplatRadius, target)
}

// Inject applies a batch of splats in order.
func (s *Solver) Inject(batch ...Injection) error {
	if err := s.ready(); err != nil {
		return err
	}
	base := s.uniforms()
	for _, in := range batch {
		u := base
		u.Point = [2]float32{float32(in.Point[0]), float32(in.Point[1])}
		u.Radius = MinSplatRadius
		if in.Radius > MinSplatRadius {
			u.Radius = float32(in.Radius)
		}
		u.Value = [4]float32{float32(in.Value[0]), float32(in.Value[1]), float32(in.Value[2])}

		f := in.Target.field()
		if err := s.dev.RunPass(pass.KernelSplat, pass.Sources{pass.SrcSource: f}, f, u); err != nil {
			return s.abort(fmt.Errorf("fluid: splat %v: %w", in.Target, err))
		}
		s.dev.Swap(f)
	}
	return nil
}

// Reset clears every field, keeping the current dimensions.
// After a failed allocation it uses the dimensions of the current layout.
func (s *Solver) Reset() error {
	if err := s.usable(); err != nil {
		return err
	}
	sim, backing := s.sim, s.backing
	if sim == (size{}) {
		sim, backing = s.layout()
	}
	return s.allocate(sim, backing)
}

// Close releases the device. Close is safe to call more than once.
func (s *Solver) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("fluid: solver closed", "device", s.dev.Name(), "steps", s.steps)
	return s.dev.Close()
}

func (s *Solver) usable() error {
	if s.closed {
		return ErrClosed
	}
	return s.err
}

// ready is usable plus allocated fields.
func (s *Solver) ready() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.sim == (size{}) {
		return ErrNotAllocated
	}
	return nil
}

// fail latches device loss so every later call reports it.
func (s *Solver) fail(err error) error {
	if errors.Is(err, ErrContextLost) {
		s.err = err
		s.log.Warn("fluid: execution context lost", "device", s.dev.Name(), "err", err)
	}
	return err
}

// abort latches an error raised part way through a sequence of passes.
// Some fields may already be swapped, so the state is unusable whatever
// the cause.
func (s *Solver) abort(err error) error {
	if s.err == nil {
		s.err = err
		s.log.Warn("fluid: pass sequence failed", "device", s.dev.Name(), "err", err)
	}
	return err
}

func (s *Solver) uniforms() pass.Uniforms {
	w, h := s.sim.w, s.sim.h
	return pass.Uniforms{
		TexelX:      1 / float32(w),
		TexelY:      1 / float32(h),
		Dissipation: 1,
		Aspect:      float32(w) / float32(h),
	}
}

func (s *Solver) allocate(sim, backing size) error {
	if err := s.dev.Allocate(sim.w, sim.h); err != nil {
		// The device may have released the old fields before failing.
		s.dev.Release()
		s.sim, s.backing = size{}, size{}
		return s.fail(fmt.Errorf("fluid: allocate %s: %w", sim, err))
	}
	s.sim, s.backing = sim, backing
	s.log.Debug("fluid: fields allocated", "sim", sim.String(), "backing", backing.String())
	return nil
}

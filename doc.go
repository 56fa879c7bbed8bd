// Package fluid is a real-time solver for the incompressible Navier–Stokes
// equations on a 2D grid, driven by Gaussian point injections of velocity
// and dye.
//
// # Overview
//
// A Solver owns five fields at the simulation resolution: velocity (2
// channels), pressure, divergence, curl and dye (3 channels). Velocity,
// pressure and dye are double buffered; every pass writes the write side
// and then swaps. Each Step runs a fixed sequence of passes:
//
//	curl -> vorticity confinement -> velocity advection -> divergence
//	     -> pressure decay + Jacobi iterations -> gradient subtraction
//	     -> dye advection
//
// Boundaries are clamp-to-edge everywhere, advection is semi-Lagrangian
// with software bilinear sampling, and velocities are expressed in cells
// per second.
//
// # Quick Start
//
//	s, err := fluid.New(fluid.Surface{Width: 800, Height: 600, PixelRatio: 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	_ = s.Splat([2]float64{0.5, 0.5}, [3]float64{200, 0}, 0.05, fluid.TargetVelocity)
//	_ = s.Splat([2]float64{0.5, 0.5}, [3]float64{1, 0.3, 0}, 0.05, fluid.TargetDye)
//	for range 60 {
//	    _ = s.Step(1.0 / 60)
//	}
//	dye, _ := s.DyeField()
//
// # Devices
//
// Passes run on a device. The "cpu" device is always registered and spreads
// every pass over a worker pool. Importing the gpu package registers the
// "wgpu" device, which runs the same kernels as WGSL compute shaders:
//
//	import _ "github.com/gogpu/fluid/gpu"
//
// When a device is requested but unavailable, New fails with an error
// wrapping ErrUnsupportedPlatform. There is no silent fallback.
//
// # Resolution
//
// The simulation grid is the surface size times the clamped device pixel
// ratio times a quality scale in [0.25, 1]. Resize reallocates only when
// the simulation or backing size actually changes, and reallocation clears
// all state. QualityController derives the scale from frame times.
//
// # Concurrency
//
// A Solver is driven from a single goroutine. Parallelism lives inside each
// pass.
package fluid

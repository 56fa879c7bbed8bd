package fluid

import (
	"fmt"
	"math"
)

// Surface describes the display area the solver feeds: its layout size in
// logical pixels and the device pixel ratio.
type Surface struct {
	Width      float64
	Height     float64
	PixelRatio float64
}

type size struct{ w, h int }

func (s size) String() string { return fmt.Sprintf("%dx%d", s.w, s.h) }

// Size returns the allocated simulation grid size.
func (s *Solver) Size() (width, height int) { return s.sim.w, s.sim.h }

// BackingSize returns the display backing size: the surface at full
// quality and clamped pixel ratio. Presentation upsamples dye to it.
func (s *Solver) BackingSize() (width, height int) { return s.backing.w, s.backing.h }

// Surface returns the surface the next Resize will size against.
func (s *Solver) Surface() Surface { return s.surface }

// SetSurface records a new surface. Call Resize to apply it.
func (s *Solver) SetSurface(surface Surface) { s.surface = surface }

// Quality returns the resolution scale the next Resize will apply.
func (s *Solver) Quality() float64 { return s.quality }

// SetQuality records a resolution scale, clamped to [MinQuality,
// MaxQuality]. Call Resize to apply it.
func (s *Solver) SetQuality(q float64) { s.quality = clamp(q, MinQuality, MaxQuality) }

// Resize recomputes the simulation and backing sizes from the surface,
// the pixel ratio and the quality scale. When both are unchanged it does
// nothing and returns false. Otherwise every field is discarded and
// reallocated zero-filled at the new simulation size.
func (s *Solver) Resize() (bool, error) {
	if err := s.usable(); err != nil {
		return false, err
	}
	sim, backing := s.layout()
	if sim == s.sim && backing == s.backing {
		return false, nil
	}
	s.log.Debug("fluid: resize",
		"from", s.sim.String(), "to", sim.String(),
		"backing", backing.String(), "quality", s.quality)
	if err := s.allocate(sim, backing); err != nil {
		return false, err
	}
	return true, nil
}

// layout computes the simulation and backing sizes for the current
// surface, quality and pixel ratio cap.
func (s *Solver) layout() (sim, backing size) {
	dpr := s.surface.PixelRatio
	if !(dpr > 0) {
		dpr = 1
	}
	dpr = math.Min(dpr, s.params.MaxPixelRatio)
	q := clamp(s.quality, MinQuality, MaxQuality)

	backing = size{
		w: floorAtLeast(s.surface.Width*dpr, MinBackingSize),
		h: floorAtLeast(s.surface.Height*dpr, MinBackingSize),
	}
	sim = size{
		w: floorAtLeast(s.surface.Width*dpr*q, MinSimSize),
		h: floorAtLeast(s.surface.Height*dpr*q, MinSimSize),
	}
	return sim, backing
}

// floorAtLeast floors v and raises it to lo. NaN and negative sizes from
// transient layouts land on lo.
func floorAtLeast(v float64, lo int) int {
	if !(v >= float64(lo)) {
		return lo
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

package fluid

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gogpu/fluid/internal/grid"
	"github.com/gogpu/fluid/pass"
)

// Diagnostics summarizes the solver state. Divergence is recomputed from
// the current velocity with the same stencil the pipeline uses, so it
// measures what remains after projection.
type Diagnostics struct {
	// MaxDivergence is the largest absolute divergence over all cells.
	MaxDivergence float64
	// DivergenceNorm is the L2 norm of the divergence field.
	DivergenceNorm float64
	// KineticEnergy is 0.5 Σ|v|² in cells²/s².
	KineticEnergy float64
	// DyeMass is the sum of all dye channels.
	DyeMass float64
}

// Diagnostics reads velocity and dye back and computes summary statistics.
func (s *Solver) Diagnostics() (Diagnostics, error) {
	vel, err := s.Field(pass.Velocity)
	if err != nil {
		return Diagnostics{}, err
	}
	dye, err := s.Field(pass.Dye)
	if err != nil {
		return Diagnostics{}, err
	}

	div := Divergence(vel)
	v := widen(vel.Pix)
	return Diagnostics{
		MaxDivergence:  floats.Norm(div, math.Inf(1)),
		DivergenceNorm: floats.Norm(div, 2),
		KineticEnergy:  0.5 * floats.Dot(v, v),
		DyeMass:        floats.Sum(widen(dye.Pix)),
	}, nil
}

// Divergence evaluates 0.5·((R.x − L.x) + (T.y − B.y)) with clamped
// neighbors over a velocity snapshot. The result is indexed y*Width+x.
func Divergence(vel FieldData) []float64 {
	f := &grid.Field{Width: vel.Width, Height: vel.Height, Channels: vel.Channels, Pix: vel.Pix}
	out := make([]float64, vel.Width*vel.Height)
	for y := range vel.Height {
		for x := range vel.Width {
			dx := f.At(x+1, y, 0) - f.At(x-1, y, 0)
			dy := f.At(x, y+1, 1) - f.At(x, y-1, 1)
			out[y*vel.Width+x] = 0.5 * float64(dx+dy)
		}
	}
	return out
}

func widen(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

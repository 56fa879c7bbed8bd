package fluid

import "math/rand/v2"

// Palette picks a dye color for an injection.
type Palette func(rng *rand.Rand) [3]float64

// RandomInjections builds n velocity and dye splat pairs at random points,
// used to seed a fresh solver. Velocities are uniform in ±force/2 cells
// per second on each axis. The solver itself never draws random numbers:
// all randomness comes from rng.
func RandomInjections(rng *rand.Rand, n int, radius, force float64, palette Palette) []Injection {
	out := make([]Injection, 0, 2*n)
	for range n {
		p := [2]float64{rng.Float64(), rng.Float64()}
		v := [3]float64{force * (rng.Float64() - 0.5), force * (rng.Float64() - 0.5)}
		c := [3]float64{1, 1, 1}
		if palette != nil {
			c = palette(rng)
		}
		out = append(out,
			Injection{Point: p, Value: v, Radius: radius, Target: TargetVelocity},
			Injection{Point: p, Value: c, Radius: radius, Target: TargetDye},
		)
	}
	return out
}

// minStrokeDt bounds the pointer speed computed from a zero frame time.
const minStrokeDt = 1.0 / 240

// Stroke converts a pointer movement into a velocity and dye injection
// pair at point. point and delta are normalized surface coordinates with
// y up; dt is the time the movement took. The velocity is the pointer
// speed in cells per second on a width × height grid, so a stroke drags
// the fluid along with the pointer.
func Stroke(point, delta [2]float64, dt float64, width, height int, dye [3]float64, radius float64) []Injection {
	if !(dt > minStrokeDt) {
		dt = minStrokeDt
	}
	v := [3]float64{delta[0] * float64(width) / dt, delta[1] * float64(height) / dt}
	return []Injection{
		{Point: point, Value: v, Radius: radius, Target: TargetVelocity},
		{Point: point, Value: dye, Radius: radius, Target: TargetDye},
	}
}

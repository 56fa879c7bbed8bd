// Package palette turns colorgrad gradients into dye palettes for splats.
package palette

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/mazznoer/colorgrad"

	"github.com/gogpu/fluid"
)

// DefaultBrightness scales gradient colors so a single splat does not
// saturate the dye field.
const DefaultBrightness = 0.15

var gradients = map[string]func() colorgrad.Gradient{
	"rainbow": colorgrad.Rainbow,
	"sinebow": colorgrad.Sinebow,
	"turbo":   colorgrad.Turbo,
	"viridis": colorgrad.Viridis,
	"plasma":  colorgrad.Plasma,
}

// Names returns the known gradient names, sorted.
func Names() []string {
	names := make([]string, 0, len(gradients))
	for name := range gradients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a gradient Named accepts.
func Known(name string) bool { return slices.Contains(Names(), name) }

// Named returns a palette sampling the named gradient at a uniformly random
// position, scaled by brightness.
func Named(name string, brightness float64) (fluid.Palette, error) {
	mk, ok := gradients[name]
	if !ok {
		return nil, fmt.Errorf("palette: unknown gradient %q (want one of %v)", name, Names())
	}
	return From(mk(), brightness), nil
}

// From returns a palette over an existing gradient.
func From(grad colorgrad.Gradient, brightness float64) fluid.Palette {
	return func(rng *rand.Rand) [3]float64 {
		return At(grad, rng.Float64(), brightness)
	}
}

// At returns the gradient color at t in [0, 1] as linear dye amounts.
func At(grad colorgrad.Gradient, t, brightness float64) [3]float64 {
	r, g, b, _ := grad.At(t).RGBA()
	const full = 0xffff
	return [3]float64{
		float64(r) / full * brightness,
		float64(g) / full * brightness,
		float64(b) / full * brightness,
	}
}

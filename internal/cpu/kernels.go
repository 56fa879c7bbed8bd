package cpu

import (
	"math"

	"github.com/gogpu/fluid/internal/grid"
	"github.com/gogpu/fluid/pass"
)

// vorticityEpsilon keeps the confinement direction finite where the curl
// magnitude is flat.
const vorticityEpsilon = 1e-4

// bindings holds the read sides bound for one pass. Unused slots are nil.
type bindings struct {
	velocity   *grid.Field
	curl       *grid.Field
	pressure   *grid.Field
	divergence *grid.Field
	source     *grid.Field
}

// kernelFunc computes rows [y0, y1) of dst.
type kernelFunc func(b *bindings, dst *grid.Field, u *pass.Uniforms, y0, y1 int)

var kernels = [...]kernelFunc{
	pass.KernelCurl:       curlKernel,
	pass.KernelVorticity:  vorticityKernel,
	pass.KernelAdvect:     advectKernel,
	pass.KernelDivergence: divergenceKernel,
	pass.KernelClear:      clearKernel,
	pass.KernelJacobi:     jacobiKernel,
	pass.KernelGradient:   gradientKernel,
	pass.KernelSplat:      splatKernel,
}

func curlKernel(b *bindings, dst *grid.Field, _ *pass.Uniforms, y0, y1 int) {
	v := b.velocity
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			l := v.At(x-1, y, 1)
			r := v.At(x+1, y, 1)
			t := v.At(x, y+1, 0)
			bt := v.At(x, y-1, 0)
			dst.Pix[dst.Offset(x, y)] = (r - l) - (t - bt)
		}
	}
}

func vorticityKernel(b *bindings, dst *grid.Field, u *pass.Uniforms, y0, y1 int) {
	v, c := b.velocity, b.curl
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			l := abs32(c.At(x-1, y, 0))
			r := abs32(c.At(x+1, y, 0))
			t := abs32(c.At(x, y+1, 0))
			bt := abs32(c.At(x, y-1, 0))
			center := c.At(x, y, 0)

			fx := 0.5 * (t - bt)
			fy := 0.5 * (r - l)
			n := float32(math.Sqrt(float64(fx*fx+fy*fy))) + vorticityEpsilon
			s := center * u.Strength / n
			fx *= s
			fy *= -s

			o := dst.Offset(x, y)
			dst.Pix[o] = v.At(x, y, 0) + fx*u.Dt
			dst.Pix[o+1] = v.At(x, y, 1) + fy*u.Dt
		}
	}
}

// advectKernel traces each cell center back along velocity, in cells per
// second, and samples the source there.
func advectKernel(b *bindings, dst *grid.Field, u *pass.Uniforms, y0, y1 int) {
	v, src := b.velocity, b.source
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			px := float32(x) - u.Dt*v.At(x, y, 0)
			py := float32(y) - u.Dt*v.At(x, y, 1)
			o := dst.Offset(x, y)
			for ch := range dst.Channels {
				dst.Pix[o+ch] = src.Sample(px, py, ch) * u.Dissipation
			}
		}
	}
}

func divergenceKernel(b *bindings, dst *grid.Field, _ *pass.Uniforms, y0, y1 int) {
	v := b.velocity
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			l := v.At(x-1, y, 0)
			r := v.At(x+1, y, 0)
			t := v.At(x, y+1, 1)
			bt := v.At(x, y-1, 1)
			dst.Pix[dst.Offset(x, y)] = 0.5 * ((r - l) + (t - bt))
		}
	}
}

func clearKernel(b *bindings, dst *grid.Field, u *pass.Uniforms, y0, y1 int) {
	lo := y0 * dst.Width * dst.Channels
	hi := y1 * dst.Width * dst.Channels
	src := b.source.Pix[lo:hi]
	out := dst.Pix[lo:hi]
	for i, s := range src {
		out[i] = s * u.Strength
	}
}

func jacobiKernel(b *bindings, dst *grid.Field, _ *pass.Uniforms, y0, y1 int) {
	p, d := b.pressure, b.divergence
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			l := p.At(x-1, y, 0)
			r := p.At(x+1, y, 0)
			t := p.At(x, y+1, 0)
			bt := p.At(x, y-1, 0)
			dst.Pix[dst.Offset(x, y)] = (l + r + bt + t - d.At(x, y, 0)) * 0.25
		}
	}
}

func gradientKernel(b *bindings, dst *grid.Field, _ *pass.Uniforms, y0, y1 int) {
	p, v := b.pressure, b.velocity
	for y := y0; y < y1; y++ {
		for x := range dst.Width {
			l := p.At(x-1, y, 0)
			r := p.At(x+1, y, 0)
			t := p.At(x, y+1, 0)
			bt := p.At(x, y-1, 0)
			o := dst.Offset(x, y)
			dst.Pix[o] = v.At(x, y, 0) - 0.5*(r-l)
			dst.Pix[o+1] = v.At(x, y, 1) - 0.5*(t-bt)
		}
	}
}

// splatKernel adds value * exp(-d²/r²) where d is the distance from the
// cell center to the splat point, x scaled by the aspect ratio.
func splatKernel(b *bindings, dst *grid.Field, u *pass.Uniforms, y0, y1 int) {
	src := b.source
	r2 := u.Radius * u.Radius
	w, h := float32(dst.Width), float32(dst.Height)
	for y := y0; y < y1; y++ {
		dy := (float32(y)+0.5)/h - u.Point[1]
		for x := range dst.Width {
			dx := ((float32(x)+0.5)/w - u.Point[0]) * u.Aspect
			g := float32(math.Exp(float64(-(dx*dx + dy*dy) / r2)))
			o := dst.Offset(x, y)
			for ch := range dst.Channels {
				dst.Pix[o+ch] = src.Pix[o+ch] + u.Value[ch]*g
			}
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

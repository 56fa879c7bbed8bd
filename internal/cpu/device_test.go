package cpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/fluid/pass"
)

func newDevice(t *testing.T, w, h int) *Device {
	t.Helper()
	d := New(4)
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Allocate(w, h); err != nil {
		t.Fatalf("Allocate(%d,%d): %v", w, h, err)
	}
	return d
}

func fill(t *testing.T, d *Device, f pass.FieldID, fn func(x, y, c int) float32) {
	t.Helper()
	w, h := d.Size()
	buf := make([]float32, pass.Len(f, w, h))
	ch := f.Channels()
	for y := range h {
		for x := range w {
			for c := range ch {
				buf[(y*w+x)*ch+c] = fn(x, y, c)
			}
		}
	}
	if err := d.Write(f, buf); err != nil {
		t.Fatalf("Write(%v): %v", f, err)
	}
}

func readField(t *testing.T, d *Device, f pass.FieldID) []float32 {
	t.Helper()
	w, h := d.Size()
	buf := make([]float32, pass.Len(f, w, h))
	if err := d.Read(f, buf); err != nil {
		t.Fatalf("Read(%v): %v", f, err)
	}
	return buf
}

func approx(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestDevice_AllocateZeroFills(t *testing.T) {
	d := newDevice(t, 8, 6)
	fill(t, d, pass.Dye, func(x, y, c int) float32 { return 1 })

	if err := d.Allocate(5, 7); err != nil {
		t.Fatal(err)
	}
	if w, h := d.Size(); w != 5 || h != 7 {
		t.Fatalf("Size() = %d,%d, want 5,7", w, h)
	}
	for _, f := range pass.Fields() {
		for i, v := range readField(t, d, f) {
			if v != 0 {
				t.Fatalf("%v[%d] = %v after Allocate, want 0", f, i, v)
			}
		}
	}
}

func TestDevice_AllocateInvalid(t *testing.T) {
	d := New(1)
	defer d.Close()
	if err := d.Allocate(0, 4); err == nil {
		t.Error("Allocate(0,4) should fail")
	}
}

func TestDevice_ReadWriteSize(t *testing.T) {
	d := newDevice(t, 4, 4)
	if err := d.Read(pass.Dye, make([]float32, 3)); !errors.Is(err, pass.ErrSize) {
		t.Errorf("Read with short slice = %v, want ErrSize", err)
	}
	if err := d.Write(pass.Velocity, make([]float32, 100)); !errors.Is(err, pass.ErrSize) {
		t.Errorf("Write with long slice = %v, want ErrSize", err)
	}

	unallocated := New(1)
	defer unallocated.Close()
	if err := unallocated.Read(pass.Dye, nil); err == nil {
		t.Error("Read on unallocated device should fail")
	}
}

func TestDevice_SwapSingleBufferedPanics(t *testing.T) {
	d := newDevice(t, 4, 4)
	defer func() {
		if recover() == nil {
			t.Error("Swap(Curl) should panic")
		}
	}()
	d.Swap(pass.Curl)
}

func TestDevice_PassWritesWriteSideOnly(t *testing.T) {
	d := newDevice(t, 4, 4)
	fill(t, d, pass.Pressure, func(x, y, c int) float32 { return 2 })

	err := d.RunPass(pass.KernelClear, pass.Sources{pass.SrcSource: pass.Pressure}, pass.Pressure, pass.Uniforms{Strength: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if got := readField(t, d, pass.Pressure)[0]; got != 2 {
		t.Errorf("read side changed before swap: %v", got)
	}
	d.Swap(pass.Pressure)
	for i, v := range readField(t, d, pass.Pressure) {
		if v != 1 {
			t.Fatalf("pressure[%d] = %v after clear, want 1", i, v)
		}
	}
	if d.Passes() != 1 {
		t.Errorf("Passes() = %d, want 1", d.Passes())
	}
}

func TestKernel_CurlOfRotation(t *testing.T) {
	// v = (-y, x) has curl 2 per cell-unit derivative; with the undivided
	// central difference the kernel reports 4 away from the edges.
	d := newDevice(t, 8, 8)
	fill(t, d, pass.Velocity, func(x, y, c int) float32 {
		if c == 0 {
			return -float32(y)
		}
		return float32(x)
	})
	if err := d.RunPass(pass.KernelCurl, pass.Sources{pass.SrcVelocity: pass.Velocity}, pass.Curl, pass.Uniforms{}); err != nil {
		t.Fatal(err)
	}
	curl := d.Field(pass.Curl)
	for y := 1; y < 7; y++ {
		for x := 1; x < 7; x++ {
			if got := curl.At(x, y, 0); got != 4 {
				t.Fatalf("curl(%d,%d) = %v, want 4", x, y, got)
			}
		}
	}
	// Left edge clamps: L == center, so the x difference halves.
	if got := curl.At(0, 3, 0); got != 3 {
		t.Errorf("curl at left edge = %v, want 3", got)
	}
}

func TestKernel_DivergenceOfLinearField(t *testing.T) {
	d := newDevice(t, 8, 8)
	fill(t, d, pass.Velocity, func(x, y, c int) float32 {
		if c == 0 {
			return 3 * float32(x)
		}
		return -float32(y)
	})
	if err := d.RunPass(pass.KernelDivergence, pass.Sources{pass.SrcVelocity: pass.Velocity}, pass.Divergence, pass.Uniforms{}); err != nil {
		t.Fatal(err)
	}
	div := d.Field(pass.Divergence)
	if got := div.At(4, 4, 0); got != 2 {
		t.Errorf("divergence = %v, want 2", got)
	}
}

func TestKernel_JacobiStencil(t *testing.T) {
	d := newDevice(t, 3, 3)
	fill(t, d, pass.Pressure, func(x, y, c int) float32 { return float32(y*3 + x) })
	fill(t, d, pass.Divergence, func(x, y, c int) float32 { return 1 })

	src := pass.Sources{pass.SrcPressure: pass.Pressure, pass.SrcDivergence: pass.Divergence}
	if err := d.RunPass(pass.KernelJacobi, src, pass.Pressure, pass.Uniforms{}); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Pressure)
	p := d.Field(pass.Pressure)
	// Center: (3 + 5 + 1 + 7 - 1) / 4.
	if got := p.At(1, 1, 0); got != 3.75 {
		t.Errorf("jacobi center = %v, want 3.75", got)
	}
	// Corner (0,0): L=0 (clamped), R=1, B=0 (clamped), T=3.
	if got := p.At(0, 0, 0); got != 0.75 {
		t.Errorf("jacobi corner = %v, want 0.75", got)
	}
}

func TestKernel_GradientSubtract(t *testing.T) {
	d := newDevice(t, 6, 6)
	fill(t, d, pass.Pressure, func(x, y, c int) float32 { return 2*float32(x) + float32(y) })
	fill(t, d, pass.Velocity, func(x, y, c int) float32 { return 10 })

	src := pass.Sources{pass.SrcPressure: pass.Pressure, pass.SrcVelocity: pass.Velocity}
	if err := d.RunPass(pass.KernelGradient, src, pass.Velocity, pass.Uniforms{}); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Velocity)
	v := d.Field(pass.Velocity)
	if got := v.At(2, 2, 0); got != 8 {
		t.Errorf("vx = %v, want 8", got)
	}
	if got := v.At(2, 2, 1); got != 9 {
		t.Errorf("vy = %v, want 9", got)
	}
}

func TestKernel_AdvectZeroVelocityIsIdentity(t *testing.T) {
	d := newDevice(t, 9, 7)
	fill(t, d, pass.Dye, func(x, y, c int) float32 { return float32((x*31+y*17+c*7)%13) / 13 })
	before := d.Field(pass.Dye).Checksum()

	src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Dye}
	u := pass.Uniforms{Dt: 0.016, Dissipation: 1}
	if err := d.RunPass(pass.KernelAdvect, src, pass.Dye, u); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Dye)
	if after := d.Field(pass.Dye).Checksum(); after != before {
		t.Error("advection with zero velocity and unit dissipation changed the dye field")
	}
}

func TestKernel_AdvectTranslatesOneCell(t *testing.T) {
	d := newDevice(t, 8, 8)
	fill(t, d, pass.Velocity, func(x, y, c int) float32 {
		if c == 0 {
			return 10
		}
		return 0
	})
	fill(t, d, pass.Dye, func(x, y, c int) float32 { return float32(x) })

	src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Dye}
	u := pass.Uniforms{Dt: 0.1, Dissipation: 0.5}
	if err := d.RunPass(pass.KernelAdvect, src, pass.Dye, u); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Dye)
	dye := d.Field(pass.Dye)
	if got := dye.At(4, 3, 2); !approx(got, 1.5, 1e-6) {
		t.Errorf("dye(4,3) = %v, want 1.5", got)
	}
	// Backtrace past the left edge clamps to column 0.
	if got := dye.At(0, 3, 0); got != 0 {
		t.Errorf("dye(0,3) = %v, want 0", got)
	}
}

func TestKernel_VorticityZeroStrengthIsIdentity(t *testing.T) {
	d := newDevice(t, 6, 6)
	fill(t, d, pass.Velocity, func(x, y, c int) float32 { return float32(x*y + c) })
	fill(t, d, pass.Curl, func(x, y, c int) float32 { return float32(x - y) })
	before := d.Field(pass.Velocity).Checksum()

	src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcCurl: pass.Curl}
	if err := d.RunPass(pass.KernelVorticity, src, pass.Velocity, pass.Uniforms{Dt: 0.016}); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Velocity)
	if d.Field(pass.Velocity).Checksum() != before {
		t.Error("zero-strength confinement changed velocity")
	}
}

func TestKernel_VorticityForceDirection(t *testing.T) {
	d := newDevice(t, 5, 5)
	// |curl| grows with x, curl positive: force = (N.y, -N.x)·curl points to -y.
	fill(t, d, pass.Curl, func(x, y, c int) float32 { return float32(x + 1) })

	src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcCurl: pass.Curl}
	if err := d.RunPass(pass.KernelVorticity, src, pass.Velocity, pass.Uniforms{Dt: 1, Strength: 1}); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Velocity)
	v := d.Field(pass.Velocity)
	if got := v.At(2, 2, 0); got != 0 {
		t.Errorf("vx = %v, want 0", got)
	}
	if got := v.At(2, 2, 1); !approx(got, -3, 1e-3) {
		t.Errorf("vy = %v, want about -3", got)
	}
}

func TestKernel_SplatGaussian(t *testing.T) {
	d := newDevice(t, 10, 10)
	u := pass.Uniforms{
		Point:  [2]float32{0.55, 0.55},
		Radius: 0.2,
		Value:  [4]float32{1, 2, 3},
		Aspect: 1,
	}
	if err := d.RunPass(pass.KernelSplat, pass.Sources{pass.SrcSource: pass.Dye}, pass.Dye, u); err != nil {
		t.Fatal(err)
	}
	d.Swap(pass.Dye)
	dye := d.Field(pass.Dye)

	// Cell (5,5) has center (0.55, 0.55): full value.
	for c, want := range []float32{1, 2, 3} {
		if got := dye.At(5, 5, c); !approx(got, want, 1e-6) {
			t.Errorf("center channel %d = %v, want %v", c, got, want)
		}
	}
	// Cell (7,5) is 0.2 away: exp(-1).
	want := float32(math.Exp(-1))
	if got := dye.At(7, 5, 0); !approx(got, want, 1e-5) {
		t.Errorf("one radius away = %v, want %v", got, want)
	}
}

func TestKernel_SplatSuperposition(t *testing.T) {
	a := newDevice(t, 12, 12)
	b := newDevice(t, 12, 12)

	u1 := pass.Uniforms{Point: [2]float32{0.3, 0.4}, Radius: 0.1, Value: [4]float32{0.5, 0.1, 0.2}, Aspect: 1}
	u2 := pass.Uniforms{Point: [2]float32{0.6, 0.7}, Radius: 0.2, Value: [4]float32{0.25, 0.3, 0.9}, Aspect: 1}
	src := pass.Sources{pass.SrcSource: pass.Dye}

	for _, u := range []pass.Uniforms{u1, u2} {
		if err := a.RunPass(pass.KernelSplat, src, pass.Dye, u); err != nil {
			t.Fatal(err)
		}
		a.Swap(pass.Dye)
	}
	for _, u := range []pass.Uniforms{u2, u1} {
		if err := b.RunPass(pass.KernelSplat, src, pass.Dye, u); err != nil {
			t.Fatal(err)
		}
		b.Swap(pass.Dye)
	}

	ga, gb := readField(t, a, pass.Dye), readField(t, b, pass.Dye)
	for i := range ga {
		if !approx(ga[i], gb[i], 1e-6) {
			t.Fatalf("dye[%d]: %v vs %v, splats do not commute", i, ga[i], gb[i])
		}
	}
}

func TestDevice_SingleWorkerMatchesPool(t *testing.T) {
	seq := New(1)
	defer seq.Close()
	par := newDevice(t, 33, 21)
	if err := seq.Allocate(33, 21); err != nil {
		t.Fatal(err)
	}

	for _, d := range []*Device{seq, par} {
		fill(t, d, pass.Velocity, func(x, y, c int) float32 {
			return float32(math.Sin(float64(x*(c+1))*0.3) * 20)
		})
		fill(t, d, pass.Dye, func(x, y, c int) float32 { return float32((x + y + c) % 5) })
		src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Dye}
		if err := d.RunPass(pass.KernelAdvect, src, pass.Dye, pass.Uniforms{Dt: 0.03, Dissipation: 0.99}); err != nil {
			t.Fatal(err)
		}
		d.Swap(pass.Dye)
	}
	if seq.Field(pass.Dye).Checksum() != par.Field(pass.Dye).Checksum() {
		t.Error("row partitioning changed the result")
	}
}

func BenchmarkAdvect256(b *testing.B) {
	d := New(0)
	defer d.Close()
	_ = d.Allocate(256, 256)
	src := pass.Sources{pass.SrcVelocity: pass.Velocity, pass.SrcSource: pass.Dye}
	u := pass.Uniforms{Dt: 0.016, Dissipation: 0.99}
	b.ResetTimer()
	for range b.N {
		_ = d.RunPass(pass.KernelAdvect, src, pass.Dye, u)
		d.Swap(pass.Dye)
	}
}

// Package cpu implements the solver device on the CPU. Field storage is a
// set of float32 arenas and every pass runs its kernel in row bands on a
// work-stealing worker pool, returning only after all bands completed.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/fluid/internal/grid"
	"github.com/gogpu/fluid/internal/parallel"
	"github.com/gogpu/fluid/pass"
)

// Name is the registry name of the CPU device.
const Name = "cpu"

// Device executes passes on the CPU.
//
// Device is not safe for concurrent use; the solver drives it from one
// goroutine. Parallelism lives inside RunPass.
type Device struct {
	pool   *parallel.WorkerPool
	log    *slog.Logger
	width  int
	height int
	pairs  [5]*grid.Pair[*grid.Field]
	single [5]*grid.Field
	passes uint64
}

var _ pass.Device = (*Device)(nil)

// New creates a CPU device backed by a pool of the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used. A single worker runs
// every pass on the calling goroutine.
func New(workers int) *Device {
	d := &Device{log: slog.New(slog.DiscardHandler)}
	if workers != 1 {
		d.pool = parallel.NewWorkerPool(workers)
	}
	return d
}

// SetLogger sets the logger used for allocation diagnostics.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.log = l
}

// Name returns "cpu".
func (d *Device) Name() string { return Name }

// Workers returns the number of goroutines a pass is spread across.
func (d *Device) Workers() int {
	if d.pool == nil {
		return 1
	}
	return d.pool.Workers()
}

// Allocate replaces every field with a zero-filled one of the given size.
func (d *Device) Allocate(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("cpu: invalid field size %dx%d", width, height)
	}
	d.Release()
	for _, f := range pass.Fields() {
		if f.DoubleBuffered() {
			d.pairs[f] = grid.NewPair(
				grid.NewField(width, height, f.Channels()),
				grid.NewField(width, height, f.Channels()),
			)
		} else {
			d.single[f] = grid.NewField(width, height, f.Channels())
		}
	}
	d.width, d.height = width, height
	d.log.Debug("cpu: fields allocated", "width", width, "height", height, "workers", d.Workers())
	return nil
}

// Size returns the allocated grid size.
func (d *Device) Size() (width, height int) { return d.width, d.height }

// Passes returns the number of passes executed since creation.
func (d *Device) Passes() uint64 { return d.passes }

// RunPass executes kernel k over every cell of dst before returning.
func (d *Device) RunPass(k pass.Kernel, src pass.Sources, dst pass.FieldID, u pass.Uniforms) error {
	pass.Validate(k, src, dst)
	if d.width == 0 {
		panic("cpu: RunPass on unallocated device")
	}

	var b bindings
	for name, f := range src {
		field := d.read(f)
		switch name {
		case pass.SrcVelocity:
			b.velocity = field
		case pass.SrcCurl:
			b.curl = field
		case pass.SrcPressure:
			b.pressure = field
		case pass.SrcDivergence:
			b.divergence = field
		case pass.SrcSource:
			b.source = field
		}
	}
	out := d.write(dst)
	fn := kernels[k]

	parallel.ForRows(d.pool, d.height, func(y0, y1 int) {
		fn(&b, out, &u, y0, y1)
	})
	d.passes++
	return nil
}

// Swap flips the read and write sides of a double-buffered field.
func (d *Device) Swap(f pass.FieldID) {
	p := d.pairs[f]
	if p == nil {
		panic(fmt.Sprintf("cpu: swap of single-buffered or unallocated field %v", f))
	}
	p.Swap()
}

// Flush is a no-op: RunPass completes synchronously.
func (d *Device) Flush() error { return nil }

// Read copies the read side of f into dst.
func (d *Device) Read(f pass.FieldID, dst []float32) error {
	field := d.read(f)
	if field == nil {
		return fmt.Errorf("cpu: read %v: device not allocated", f)
	}
	if len(dst) != len(field.Pix) {
		return fmt.Errorf("cpu: read %v: %w", f, pass.ErrSize)
	}
	copy(dst, field.Pix)
	return nil
}

// Write replaces the read side of f with src.
func (d *Device) Write(f pass.FieldID, src []float32) error {
	field := d.read(f)
	if field == nil {
		return fmt.Errorf("cpu: write %v: device not allocated", f)
	}
	if len(src) != len(field.Pix) {
		return fmt.Errorf("cpu: write %v: %w", f, pass.ErrSize)
	}
	copy(field.Pix, src)
	return nil
}

// Field returns the read side of f. The returned field is only valid until
// the next pass or swap touching f.
func (d *Device) Field(f pass.FieldID) *grid.Field { return d.read(f) }

// Release drops all field storage.
func (d *Device) Release() {
	d.pairs = [5]*grid.Pair[*grid.Field]{}
	d.single = [5]*grid.Field{}
	d.width, d.height = 0, 0
}

// Close releases storage and stops the worker pool.
func (d *Device) Close() error {
	d.Release()
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

func (d *Device) read(f pass.FieldID) *grid.Field {
	if !f.Valid() {
		return nil
	}
	if p := d.pairs[f]; p != nil {
		return p.Read()
	}
	return d.single[f]
}

func (d *Device) write(f pass.FieldID) *grid.Field {
	if p := d.pairs[f]; p != nil {
		return p.Write()
	}
	return d.single[f]
}

package parallel

// minBandRows keeps bands large enough that scheduling overhead stays small
// relative to the kernel work on small grids.
const minBandRows = 4

// Band is a half-open range of grid rows [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Bands splits height rows into at most n contiguous bands of near-equal
// size. Every row belongs to exactly one band.
func Bands(height, n int) []Band {
	if height <= 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if limit := (height + minBandRows - 1) / minBandRows; n > limit {
		n = limit
	}

	bands := make([]Band, 0, n)
	base, extra := height/n, height%n
	y := 0
	for i := range n {
		rows := base
		if i < extra {
			rows++
		}
		bands = append(bands, Band{Y0: y, Y1: y + rows})
		y += rows
	}
	return bands
}

// ForRows calls fn once per band, covering every row in [0, height), and
// returns after all bands finished. With a nil pool the bands run
// sequentially on the caller.
func ForRows(p *WorkerPool, height int, fn func(y0, y1 int)) {
	if p == nil {
		if height > 0 {
			fn(0, height)
		}
		return
	}

	// Two bands per worker leaves room for stealing.
	bands := Bands(height, p.Workers()*2)
	if len(bands) == 1 {
		fn(bands[0].Y0, bands[0].Y1)
		return
	}

	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b.Y0, b.Y1) }
	}
	p.ExecuteAll(work)
}

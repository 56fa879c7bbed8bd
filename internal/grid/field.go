// Package grid provides the storage arenas used by the CPU device: a dense
// float32 field of C channels over a W×H grid and a double buffer that
// swaps read and write sides without copying.
package grid

import (
	"hash/fnv"
	"math"
)

// Field is a W×H grid of cells, each holding Channels float32 components.
// Cells are stored row-major, channels interleaved: the value of channel c
// at (x, y) lives at Pix[(y*Width+x)*Channels+c].
type Field struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

// NewField allocates a zero-filled field.
func NewField(width, height, channels int) *Field {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if channels < 1 {
		channels = 1
	}
	return &Field{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// Offset returns the index of channel 0 of cell (x, y). Coordinates are
// clamped to the grid edge.
func (f *Field) Offset(x, y int) int {
	x = clampInt(x, 0, f.Width-1)
	y = clampInt(y, 0, f.Height-1)
	return (y*f.Width + x) * f.Channels
}

// At returns channel c of cell (x, y) with clamp-to-edge addressing.
func (f *Field) At(x, y, c int) float32 {
	return f.Pix[f.Offset(x, y)+c]
}

// Set writes channel c of cell (x, y). Out-of-range cells are ignored.
func (f *Field) Set(x, y, c int, v float32) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// Clear zero-fills the field.
func (f *Field) Clear() {
	clear(f.Pix)
}

// SameSize reports whether f and g cover the same grid.
func (f *Field) SameSize(g *Field) bool {
	return f.Width == g.Width && f.Height == g.Height
}

// Sample bilinearly interpolates channel c at cell-space position (px, py),
// where cell (i, j) has its center at (i, j). The four surrounding cell
// centers are clamped to the grid, so positions outside the grid read the
// nearest edge values.
func (f *Field) Sample(px, py float32, c int) float32 {
	x0f := float32(math.Floor(float64(px)))
	y0f := float32(math.Floor(float64(py)))
	fx := px - x0f
	fy := py - y0f
	x0, y0 := int(x0f), int(y0f)

	a := f.At(x0, y0, c)
	b := f.At(x0+1, y0, c)
	d := f.At(x0, y0+1, c)
	e := f.At(x0+1, y0+1, c)

	top := a + (b-a)*fx
	bot := d + (e-d)*fx
	return top + (bot-top)*fy
}

// SampleUV samples channel c at normalized coordinates, (0,0) and (1,1)
// being the outer corners of the grid.
func (f *Field) SampleUV(u, v float32, c int) float32 {
	return f.Sample(u*float32(f.Width)-0.5, v*float32(f.Height)-0.5, c)
}

// Checksum returns an FNV-1a hash of the raw cell data. Two fields with
// bit-identical contents produce the same checksum.
func (f *Field) Checksum() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range f.Pix {
		bits := math.Float32bits(v)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

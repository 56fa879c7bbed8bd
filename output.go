package fluid

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/fluid/pass"
)

// Format describes the component encoding of a field snapshot.
type Format uint8

const (
	// FormatFloat32 is one float32 per channel.
	FormatFloat32 Format = iota
)

func (f Format) String() string {
	if f == FormatFloat32 {
		return "float32"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// FieldData is a copy of one field at simulation resolution. Cells are
// row-major with interleaved channels; row 0 is the bottom of the domain.
type FieldData struct {
	Width    int
	Height   int
	Channels int
	Format   Format
	Pix      []float32
}

// DyeField is the snapshot the presentation stage consumes.
type DyeField = FieldData

// At returns channel c of cell (x, y).
func (f FieldData) At(x, y, c int) float32 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// DyeField returns a copy of the current dye field.
func (s *Solver) DyeField() (DyeField, error) {
	return s.Field(pass.Dye)
}

// Field returns a copy of the read side of any field.
func (s *Solver) Field(id pass.FieldID) (FieldData, error) {
	if err := s.ready(); err != nil {
		return FieldData{}, err
	}
	if !id.Valid() {
		return FieldData{}, fmt.Errorf("fluid: unknown field %v", id)
	}
	w, h := s.sim.w, s.sim.h
	out := FieldData{
		Width:    w,
		Height:   h,
		Channels: id.Channels(),
		Format:   FormatFloat32,
		Pix:      make([]float32, pass.Len(id, w, h)),
	}
	if err := s.dev.Read(id, out.Pix); err != nil {
		return FieldData{}, s.fail(fmt.Errorf("fluid: read %v: %w", id, err))
	}
	return out, nil
}

// Load replaces the contents of a field. The slice must hold
// width × height × channels values.
func (s *Solver) Load(id pass.FieldID, pix []float32) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.dev.Write(id, pix); err != nil {
		return s.fail(fmt.Errorf("fluid: load %v: %w", id, err))
	}
	return nil
}

// RGBA converts the first three channels to an 8-bit image, clamping to
// [0, 1]. The image is flipped so the top row of the domain is row 0.
// Fields with fewer than three channels repeat the last channel.
func (f FieldData) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := range f.Height {
		for x := range f.Width {
			img.SetRGBA(x, f.Height-1-y, f.ColorAt(x, y))
		}
	}
	return img
}

// Upscale renders the field at the given size with bilinear filtering,
// the way presentation stretches the coarse dye grid onto the backing
// store.
func (f FieldData) Upscale(width, height int) *image.RGBA {
	src := f.RGBA()
	if width == f.Width && height == f.Height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// ColorAt returns the cell color as an 8-bit RGBA value.
func (f FieldData) ColorAt(x, y int) color.RGBA {
	o := (y*f.Width + x) * f.Channels
	var c color.RGBA
	c.A = 0xff
	c.R = toByte(f.Pix[o])
	c.G = toByte(f.Pix[o+min(1, f.Channels-1)])
	c.B = toByte(f.Pix[o+min(2, f.Channels-1)])
	return c
}

func toByte(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}

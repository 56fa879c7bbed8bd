//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/fluid/pass"
)

// uniformSize is the byte size of the WGSL Params struct.
const uniformSize = 64

// packUniforms serializes the per-pass parameters in the layout of the
// WGSL Params struct:
//
//	offset  field
//	0       size        vec2<u32>
//	8       texel       vec2<f32>
//	16      center      vec2<f32>
//	24      dt          f32
//	28      dissipation f32
//	32      value       vec4<f32>
//	48      strength    f32
//	52      aspect      f32
//	56      radius      f32
//	60      channels    u32
func packUniforms(buf []byte, w, h, channels uint32, u *pass.Uniforms) []byte {
	if cap(buf) < uniformSize {
		buf = make([]byte, uniformSize)
	}
	buf = buf[:uniformSize]
	le := binary.LittleEndian
	putF := func(off int, v float32) { le.PutUint32(buf[off:], math.Float32bits(v)) }

	le.PutUint32(buf[0:], w)
	le.PutUint32(buf[4:], h)
	putF(8, u.TexelX)
	putF(12, u.TexelY)
	putF(16, u.Point[0])
	putF(20, u.Point[1])
	putF(24, u.Dt)
	putF(28, u.Dissipation)
	for i, v := range u.Value {
		putF(32+4*i, v)
	}
	putF(48, u.Strength)
	putF(52, u.Aspect)
	putF(56, u.Radius)
	le.PutUint32(buf[60:], channels)
	return buf
}

// encodeFloats packs src as little-endian float32 bytes into dst.
func encodeFloats(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// decodeFloats unpacks little-endian float32 bytes from src into dst.
func decodeFloats(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

package device

import (
	"encoding/binary"
	"math"
)

// Params packs a uniform block of 32-bit fields, little-endian, in
// declaration order.
type Params []byte

// U32 appends a u32 field.
func (p Params) U32(v uint32) Params {
	return binary.LittleEndian.AppendUint32(p, v)
}

// F32 appends an f32 field.
func (p Params) F32(v float32) Params {
	return binary.LittleEndian.AppendUint32(p, math.Float32bits(v))
}

// Float32Bytes serializes v for upload.
func Float32Bytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// ReadFloat32s decodes min(len(dst), len(src)/4) floats from src into dst.
func ReadFloat32s(dst []float32, src []byte) {
	n := min(len(dst), len(src)/4)
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

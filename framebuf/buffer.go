package framebuf

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
)

// Common errors for buffer and pool operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = screenfx.NewError("framebuf: invalid dimensions", screenfx.ErrConfig)

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = screenfx.NewError("framebuf: invalid format", screenfx.ErrConfig)

	// ErrSizeMismatch is returned when two buffers must share size and format but don't.
	ErrSizeMismatch = screenfx.NewError("framebuf: size or format mismatch", screenfx.ErrConfig)

	// ErrPoolExhausted is returned when a pool cannot hand out another buffer.
	ErrPoolExhausted = screenfx.NewError("framebuf: pool exhausted", screenfx.ErrResource)

	// ErrForeignBuffer is returned when releasing a buffer the pool does not
	// currently hold as outstanding (double release or wrong pool).
	ErrForeignBuffer = screenfx.NewError("framebuf: buffer not outstanding in this pool", screenfx.ErrState)

	// ErrScopeClosed is returned when acquiring through a closed Scope.
	ErrScopeClosed = screenfx.NewError("framebuf: scope closed", screenfx.ErrState)
)

// Lifetime distinguishes per-frame buffers from buffers that live across frames.
type Lifetime uint8

const (
	// Temporary buffers are acquired and released within one frame.
	Temporary Lifetime = iota
	// Persistent buffers live until their owner is torn down.
	Persistent
)

func (l Lifetime) String() string {
	switch l {
	case Temporary:
		return "Temporary"
	case Persistent:
		return "Persistent"
	default:
		return fmt.Sprintf("Lifetime(%d)", l)
	}
}

// Buffer is a 2D grid of float32 texels.
//
// Single-channel buffers read back as (v, 0, 0, 1), the way a GPU samples an
// R32Float texture. Buffers are not safe for concurrent writes to the same
// texel; disjoint rows may be written in parallel.
type Buffer struct {
	data     []float32
	width    int
	height   int
	channels int
	format   Format
	lifetime Lifetime
	owner    *Pool
}

// New allocates a buffer that is not owned by any pool.
func New(width, height int, format Format) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	ch := format.Channels()
	return &Buffer{
		data:     make([]float32, width*height*ch),
		width:    width,
		height:   height,
		channels: ch,
		format:   format,
	}, nil
}

// Width returns the buffer width in texels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in texels.
func (b *Buffer) Height() int { return b.height }

// Format returns the texel format.
func (b *Buffer) Format() Format { return b.format }

// Lifetime returns the lifetime class the buffer was acquired with.
func (b *Buffer) Lifetime() Lifetime { return b.lifetime }

// Pooled reports whether the buffer belongs to a pool.
func (b *Buffer) Pooled() bool { return b.owner != nil }

// Bounds returns the buffer rectangle.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// Data returns the raw texel storage, row-major, Channels values per texel.
func (b *Buffer) Data() []float32 { return b.data }

// SameShape reports whether b and o share dimensions and format.
func (b *Buffer) SameShape(o *Buffer) bool {
	return o != nil && b.width == o.width && b.height == o.height && b.format == o.format
}

// At returns the texel at (x, y). Coordinates must be in bounds.
func (b *Buffer) At(x, y int) f32.Vec4 {
	i := (y*b.width + x) * b.channels
	if b.channels == 1 {
		return f32.Vec4{b.data[i], 0, 0, 1}
	}
	return f32.Vec4{b.data[i], b.data[i+1], b.data[i+2], b.data[i+3]}
}

// Load returns the texel at (x, y) with coordinates clamped to the edges.
func (b *Buffer) Load(x, y int) f32.Vec4 {
	return b.At(clampInt(x, 0, b.width-1), clampInt(y, 0, b.height-1))
}

// Set stores v at (x, y). Single-channel buffers keep v[0].
func (b *Buffer) Set(x, y int, v f32.Vec4) {
	i := (y*b.width + x) * b.channels
	if b.format == FormatRGBA8 {
		for c := range 4 {
			v[c] = quantize8(v[c])
		}
	}
	if b.channels == 1 {
		b.data[i] = v[0]
		return
	}
	b.data[i], b.data[i+1], b.data[i+2], b.data[i+3] = v[0], v[1], v[2], v[3]
}

// Value returns the first channel at (x, y).
func (b *Buffer) Value(x, y int) float32 {
	return b.data[(y*b.width+x)*b.channels]
}

// SetValue stores v in the first channel at (x, y).
func (b *Buffer) SetValue(x, y int, v float32) {
	if b.format == FormatRGBA8 {
		v = quantize8(v)
	}
	b.data[(y*b.width+x)*b.channels] = v
}

// SetData stores raw texels, row-major with Channels values per texel, the
// way Set would: RGBA8 buffers quantize every value.
func (b *Buffer) SetData(src []float32) error {
	if len(src) != len(b.data) {
		return fmt.Errorf("%w: %d values for %dx%d %s", ErrSizeMismatch, len(src), b.width, b.height, b.format)
	}
	if b.format != FormatRGBA8 {
		copy(b.data, src)
		return nil
	}
	for i, v := range src {
		b.data[i] = quantize8(v)
	}
	return nil
}

// Clear sets every texel to zero.
func (b *Buffer) Clear() {
	clear(b.data)
}

// Fill sets every texel to v.
func (b *Buffer) Fill(v f32.Vec4) {
	for y := range b.height {
		for x := range b.width {
			b.Set(x, y, v)
		}
	}
}

// CopyFrom copies src into b. Both must share dimensions and format.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if !b.SameShape(src) {
		return fmt.Errorf("%w: %dx%d %s <- %dx%d %s", ErrSizeMismatch,
			b.width, b.height, b.format, src.width, src.height, src.format)
	}
	copy(b.data, src.data)
	return nil
}

// SampleNearest samples at normalized coordinates (u, v) in [0, 1] with
// clamp-to-edge addressing.
func (b *Buffer) SampleNearest(u, v float32) f32.Vec4 {
	x := int(math32.Floor(u * float32(b.width)))
	y := int(math32.Floor(v * float32(b.height)))
	return b.Load(x, y)
}

// SampleBilinear samples at normalized coordinates (u, v) in [0, 1] with
// bilinear filtering between texel centers and clamp-to-edge addressing.
func (b *Buffer) SampleBilinear(u, v float32) f32.Vec4 {
	fx := u*float32(b.width) - 0.5
	fy := v*float32(b.height) - 0.5
	x0 := math32.Floor(fx)
	y0 := math32.Floor(fy)
	tx := fx - x0
	ty := fy - y0
	ix, iy := int(x0), int(y0)

	c00 := b.Load(ix, iy)
	c10 := b.Load(ix+1, iy)
	c01 := b.Load(ix, iy+1)
	c11 := b.Load(ix+1, iy+1)

	var out f32.Vec4
	for c := range 4 {
		top := c00[c] + (c10[c]-c00[c])*tx
		bot := c01[c] + (c11[c]-c01[c])*tx
		out[c] = top + (bot-top)*ty
	}
	return out
}

// SampleTexel samples at fractional texel coordinates (centers at +0.5)
// with bilinear filtering.
func (b *Buffer) SampleTexel(x, y float32) f32.Vec4 {
	return b.SampleBilinear(x/float32(b.width), y/float32(b.height))
}

func quantize8(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return math32.Round(v*255) / 255
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

package framebuf

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// ToImage converts b to an 8-bit image. Channels are clamped to [0, 1].
// Single-channel buffers become opaque grayscale.
func ToImage(b *Buffer) *image.NRGBA {
	img := image.NewNRGBA(b.Bounds())
	for y := range b.height {
		for x := range b.width {
			v := b.At(x, y)
			if b.channels == 1 {
				g := to8(v[0])
				img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 255})
				continue
			}
			img.SetNRGBA(x, y, color.NRGBA{R: to8(v[0]), G: to8(v[1]), B: to8(v[2]), A: to8(v[3])})
		}
	}
	return img
}

// ToImageScaled converts b to an 8-bit image of the given size. Small
// capture buffers are upscaled with nearest-neighbor so each cell stays
// visible as a block.
func ToImageScaled(b *Buffer, width, height int) *image.NRGBA {
	src := ToImage(b)
	if width == b.width && height == b.height {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// FromImage converts img to a buffer of the given format.
func FromImage(img image.Image, format Format) (*Buffer, error) {
	r := img.Bounds()
	b, err := New(r.Dx(), r.Dy(), format)
	if err != nil {
		return nil, err
	}
	for y := range b.height {
		for x := range b.width {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			b.Set(x, y, [4]float32{
				float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255,
			})
		}
	}
	return b, nil
}

// EncodeWebP writes b to w as a lossless WebP image.
func EncodeWebP(w io.Writer, b *Buffer) error {
	return EncodeWebPScaled(w, b, b.width, b.height)
}

// EncodeWebPScaled writes b to w as a lossless WebP image of the given size.
func EncodeWebPScaled(w io.Writer, b *Buffer, width, height int) error {
	if err := nativewebp.Encode(w, ToImageScaled(b, width, height), nil); err != nil {
		return fmt.Errorf("framebuf: encode webp: %w", err)
	}
	return nil
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

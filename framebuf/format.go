// Package framebuf provides the frame buffers and the resource pool shared by
// the screenfx pipelines.
//
// A Buffer is a 2D grid of float32 texels in one of a small set of formats.
// Buffers used within a frame are acquired from a Pool (usually through a
// Scope) and returned before the frame ends.
package framebuf

import "github.com/gogpu/gputypes"

// Format represents a texel storage format.
type Format uint8

const (
	// FormatR32Float is a single-channel 32-bit float format.
	// Used for ray lengths and linear depth.
	FormatR32Float Format = iota

	// FormatRGBA32Float is a four-channel 32-bit float format.
	FormatRGBA32Float

	// FormatRGBA8 is a four-channel format quantized to 8 bits per channel.
	// Values are clamped to [0, 1] and rounded to 1/255 on store.
	FormatRGBA8

	formatCount
)

// FormatInfo contains metadata about a texel format.
type FormatInfo struct {
	// Channels is the number of stored channels.
	Channels int

	// BitsPerChannel is the precision of each channel.
	BitsPerChannel int

	// Quantized reports whether stores are clamped and rounded.
	Quantized bool

	// Texture is the matching GPU texture format.
	Texture gputypes.TextureFormat

	name string
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatR32Float: {
		Channels:       1,
		BitsPerChannel: 32,
		Texture:        gputypes.TextureFormatR32Float,
		name:           "R32Float",
	},
	FormatRGBA32Float: {
		Channels:       4,
		BitsPerChannel: 32,
		Texture:        gputypes.TextureFormatRGBA32Float,
		name:           "RGBA32Float",
	},
	FormatRGBA8: {
		Channels:       4,
		BitsPerChannel: 8,
		Quantized:      true,
		Texture:        gputypes.TextureFormatRGBA8Unorm,
		name:           "RGBA8",
	},
}

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// Info returns the metadata for f. Unknown formats return the zero value.
func (f Format) Info() FormatInfo {
	if !f.IsValid() {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// Channels returns the number of stored channels.
func (f Format) Channels() int {
	return f.Info().Channels
}

// TextureFormat returns the GPU texture format with the same layout.
func (f Format) TextureFormat() gputypes.TextureFormat {
	if !f.IsValid() {
		return gputypes.TextureFormatUndefined
	}
	return formatInfoTable[f].Texture
}

func (f Format) String() string {
	if !f.IsValid() {
		return "Unknown"
	}
	return formatInfoTable[f].name
}

// FormatFromTexture maps a GPU texture format to a buffer format.
func FormatFromTexture(tf gputypes.TextureFormat) (Format, bool) {
	for f := range formatCount {
		if formatInfoTable[f].Texture == tf {
			return f, true
		}
	}
	return 0, false
}

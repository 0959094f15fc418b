package projection

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/f32"
)

// DepthRange is the clip-space depth convention of a graphics backend.
type DepthRange uint8

const (
	// FullRange maps the view frustum to clip depth [-w, w] (OpenGL).
	FullRange DepthRange = iota

	// HalfRange maps the view frustum to clip depth [0, w] (Direct3D, Metal,
	// Vulkan, WebGPU).
	HalfRange
)

func (r DepthRange) String() string {
	switch r {
	case FullRange:
		return "FullRange"
	case HalfRange:
		return "HalfRange"
	default:
		return fmt.Sprintf("DepthRange(%d)", r)
	}
}

// Near returns the device depth of the near plane.
func (r DepthRange) Near() float32 {
	if r == HalfRange {
		return 0
	}
	return -1
}

// ForBackend returns the depth convention of a backend.
func ForBackend(b gputypes.Backend) DepthRange {
	if b == gputypes.BackendGL {
		return FullRange
	}
	return HalfRange
}

// ToHalfRange rewrites a full-range projection so that it produces half-range
// clip depth: the third row becomes 0.5*row2 + 0.5*row3.
func ToHalfRange(p f32.Mat4) f32.Mat4 {
	for c := range 4 {
		p[8+c] = 0.5*p[8+c] + 0.5*p[12+c]
	}
	return p
}

// Adjust applies the backend depth-range rewrite when halfRange is true and
// returns p unchanged otherwise. It must run before anything else derives
// data from the projection.
func Adjust(p f32.Mat4, halfRange bool) f32.Mat4 {
	if halfRange {
		return ToHalfRange(p)
	}
	return p
}

// Adjust applies the rewrite required by r to a full-range projection.
func (r DepthRange) Adjust(p f32.Mat4) f32.Mat4 {
	return Adjust(p, r == HalfRange)
}

// DeviceDepth returns the normalized device depth of a view-space point at
// the given eye depth (distance along -Z). p must already be adjusted for
// the convention the depth is stored in.
func DeviceDepth(p f32.Mat4, eyeDepth float32) float32 {
	z := -eyeDepth
	clipZ := p[10]*z + p[11]
	clipW := p[14]*z + p[15]
	return clipZ / clipW
}

// LinearDepth inverts DeviceDepth: it returns the eye depth of a stored
// device depth under projection p.
func LinearDepth(p f32.Mat4, deviceDepth float32) float32 {
	// Perspective: w = -z, so ndc*(-z) = p10*z + p11.
	return p[11] / (deviceDepth + p[10])
}

// IsBackground reports whether a stored device depth is at the far plane
// (cleared depth).
func IsBackground(deviceDepth float32) bool {
	return deviceDepth >= 1
}

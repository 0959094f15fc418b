package projection

import "golang.org/x/image/math/f32"

// Viewport is a normalized camera rectangle, as a fraction of the window.
// A camera renders into a frame the size of its viewport rectangle, so the
// screen-space helpers in this package take that frame's pixel size and
// never scale by the viewport again.
type Viewport struct {
	X, Y, Width, Height float32
}

// FullViewport covers the whole target.
var FullViewport = Viewport{Width: 1, Height: 1}

// Info holds the four constants that reconstruct a view-space position from
// a screen position and an eye depth:
//
//	view.xy = (screen.xy * Info[0:2] + Info[2:4]) * view.z
//
// Screen coordinates are in pixels with the origin at the bottom-left of the
// frame. Info must be recomputed whenever the projection or frame size
// changes.
type Info [4]float32

// NewInfo derives reconstruction constants from a projection matrix and the
// pixel size of the frame, the same size ToScreen maps into.
func NewInfo(p f32.Mat4, width, height int) Info {
	w, h := float32(width), float32(height)
	return Info{
		-2 / (w * p[0]),
		-2 / (h * p[5]),
		(1 - p[2]) / p[0],
		(1 - p[6]) / p[5],
	}
}

// ViewPosition reconstructs the view-space position at screen position
// (sx, sy) and the given eye depth.
func (in Info) ViewPosition(sx, sy, eyeDepth float32) f32.Vec3 {
	z := -eyeDepth
	return f32.Vec3{
		(sx*in[0] + in[2]) * z,
		(sy*in[1] + in[3]) * z,
		z,
	}
}

// ToScreen projects a view-space point to screen pixels (bottom-left origin).
// ok is false for points at or behind the camera plane.
func ToScreen(p f32.Mat4, v f32.Vec3, width, height int) (sx, sy float32, ok bool) {
	c := Transform(p, f32.Vec4{v[0], v[1], v[2], 1})
	if c[3] <= 1e-6 {
		return 0, 0, false
	}
	ndcX := c[0] / c[3]
	ndcY := c[1] / c[3]
	return (ndcX*0.5 + 0.5) * float32(width), (ndcY*0.5 + 0.5) * float32(height), true
}

// ScreenY converts a top-down pixel row index to a bottom-left screen
// coordinate at the texel center.
func ScreenY(row, height int) float32 {
	return float32(height) - (float32(row) + 0.5)
}

// RowFromScreenY converts a bottom-left screen coordinate to a top-down
// fractional row coordinate (texel centers at +0.5).
func RowFromScreenY(sy float32, height int) float32 {
	return float32(height) - sy
}

package ssr

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/projection"
)

// Frame is the rendered input of a reflection pass.
type Frame struct {
	// Color is the lit scene color.
	Color *framebuf.Buffer
	// Depth is device depth in the context's depth-range convention,
	// 1 on background.
	Depth *framebuf.Buffer
	// Normal holds view-space normals in xyz; w is 0 where nothing was drawn.
	Normal *framebuf.Buffer
}

func (f Frame) validate() error {
	if f.Color == nil || f.Depth == nil || f.Normal == nil {
		return fmt.Errorf("%w: ssr frame is missing a buffer", screenfx.ErrConfig)
	}
	w, h := f.Color.Width(), f.Color.Height()
	if f.Depth.Width() != w || f.Depth.Height() != h || f.Normal.Width() != w || f.Normal.Height() != h {
		return fmt.Errorf("%w: ssr frame buffers differ in size", framebuf.ErrSizeMismatch)
	}
	return nil
}

// Camera is the viewing camera of a frame. The frame is the camera's
// viewport-sized target.
type Camera interface {
	// Projection returns the full-range (OpenGL convention) projection.
	Projection() f32.Mat4
}

// frameView holds everything the passes derive from a frame and camera.
type frameView struct {
	frame  Frame
	proj   f32.Mat4
	info   projection.Info
	width  int
	height int
	near   float32
}

// newFrameView applies the depth-range rewrite to the camera projection
// before deriving anything else from it.
func newFrameView(frame Frame, cam Camera, halfRange bool) (*frameView, error) {
	p := projection.Adjust(cam.Projection(), halfRange)
	if p[0] == 0 || p[5] == 0 || p[14] == 0 {
		return nil, fmt.Errorf("%w: ssr camera projection is not perspective", screenfx.ErrConfig)
	}
	w, h := frame.Color.Width(), frame.Color.Height()
	var near float32 = -1
	if halfRange {
		near = 0
	}
	return &frameView{
		frame:  frame,
		proj:   p,
		info:   projection.NewInfo(p, w, h),
		width:  w,
		height: h,
		near:   projection.LinearDepth(p, near),
	}, nil
}

// sourcePixel maps pixel (x, y) of a w by h target onto the source frame.
func (v *frameView) sourcePixel(x, y, w, h int) (int, int) {
	sx := int((float32(x) + 0.5) * float32(v.width) / float32(w))
	sy := int((float32(y) + 0.5) * float32(v.height) / float32(h))
	return min(sx, v.width-1), min(sy, v.height-1)
}

// eyeDepth returns the eye depth at source pixel (x, y) and false on
// background.
func (v *frameView) eyeDepth(x, y int) (float32, bool) {
	d := v.frame.Depth.Value(x, y)
	if projection.IsBackground(d) {
		return 0, false
	}
	return projection.LinearDepth(v.proj, d), true
}

// surface reconstructs the view-space position and normal at source pixel
// (x, y). ok is false on background, missing normals, or beyond cutOff.
func (v *frameView) surface(x, y int, cutOff float32) (pos, n f32.Vec3, ok bool) {
	eye, hit := v.eyeDepth(x, y)
	if !hit || eye > cutOff {
		return pos, n, false
	}
	nv := v.frame.Normal.At(x, y)
	if nv[3] == 0 {
		return pos, n, false
	}
	pos = v.info.ViewPosition(float32(x)+0.5, projection.ScreenY(y, v.height), eye)
	n = projection.Normalize(f32.Vec3{nv[0], nv[1], nv[2]})
	return pos, n, true
}

// reflection returns the view-space reflection direction at a surface.
func reflection(pos, n f32.Vec3) f32.Vec3 {
	return projection.Normalize(projection.Reflect(projection.Normalize(pos), n))
}

// pixelSize returns the view-space size of one source pixel at eye depth.
func (v *frameView) pixelSize(eye float32) float32 {
	return 2 * eye / (float32(v.height) * math32.Abs(v.proj[5]))
}

// project maps a view-space point to fractional source texel coordinates
// (row 0 at the top). ok is false for points behind the near plane or off
// screen.
func (v *frameView) project(q f32.Vec3) (tx, ty float32, ok bool) {
	if -q[2] < v.near {
		return 0, 0, false
	}
	sx, sy, ok := projection.ToScreen(v.proj, q, v.width, v.height)
	if !ok {
		return 0, 0, false
	}
	ty = projection.RowFromScreenY(sy, v.height)
	if sx < 0 || ty < 0 || sx >= float32(v.width) || ty >= float32(v.height) {
		return 0, 0, false
	}
	return sx, ty, true
}

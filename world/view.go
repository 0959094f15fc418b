package world

import "github.com/gogpu/screenfx/framebuf"

// CaptureView is a camera bound to a renderer, so it can render itself into
// capture buffers.
type CaptureView struct {
	*Camera
	r *Renderer
}

// View binds cam to r.
func (r *Renderer) View(cam *Camera) *CaptureView {
	return &CaptureView{Camera: cam, r: r}
}

// Render writes the lit scene as seen by the view.
func (v *CaptureView) Render(dst *framebuf.Buffer) error {
	return v.r.Render(v.Camera, dst)
}

// RenderPositions writes encoded world positions as seen by the view.
func (v *CaptureView) RenderPositions(dst *framebuf.Buffer, boundary float32) error {
	return v.r.RenderPositions(v.Camera, dst, boundary)
}

// RenderNormals writes encoded world normals as seen by the view.
func (v *CaptureView) RenderNormals(dst *framebuf.Buffer) error {
	return v.r.RenderNormals(v.Camera, dst)
}

package world

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/projection"
)

// Camera is a perspective camera attached to a Transform. Its projection
// uses the full-range depth convention; consumers rewrite it for their
// backend.
type Camera struct {
	transform *Transform
	fov       float32
	near      float32
	far       float32
	aspect    float32
	viewport  projection.Viewport
}

// CameraOption configures a Camera.
type CameraOption func(*Camera)

// WithFieldOfView sets the vertical field of view in degrees.
func WithFieldOfView(deg float32) CameraOption {
	return func(c *Camera) { c.fov = deg }
}

// WithClipPlanes sets the near and far clip distances.
func WithClipPlanes(near, far float32) CameraOption {
	return func(c *Camera) {
		c.near = near
		c.far = far
	}
}

// WithAspect sets the width/height aspect ratio.
func WithAspect(aspect float32) CameraOption {
	return func(c *Camera) { c.aspect = aspect }
}

// WithViewport sets the normalized viewport rectangle.
func WithViewport(vp projection.Viewport) CameraOption {
	return func(c *Camera) { c.viewport = vp }
}

// NewCamera creates a camera attached to t. A nil t gets a fresh Transform.
func NewCamera(t *Transform, opts ...CameraOption) *Camera {
	if t == nil {
		t = &Transform{}
	}
	c := &Camera{
		transform: t,
		fov:       60,
		near:      0.3,
		far:       1000,
		aspect:    16.0 / 9.0,
		viewport:  projection.FullViewport,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transform returns the transform the camera is attached to.
func (c *Camera) Transform() *Transform { return c.transform }

// FieldOfView returns the vertical field of view in degrees.
func (c *Camera) FieldOfView() float32 { return c.fov }

// SetFieldOfView sets the vertical field of view in degrees.
func (c *Camera) SetFieldOfView(deg float32) { c.fov = deg }

// NearClip returns the near clip distance.
func (c *Camera) NearClip() float32 { return c.near }

// FarClip returns the far clip distance.
func (c *Camera) FarClip() float32 { return c.far }

// SetFarClip sets the far clip distance.
func (c *Camera) SetFarClip(d float32) { c.far = d }

// Aspect returns the width/height aspect ratio.
func (c *Camera) Aspect() float32 { return c.aspect }

// SetAspect sets the width/height aspect ratio.
func (c *Camera) SetAspect(a float32) { c.aspect = a }

// Viewport returns the normalized viewport rectangle.
func (c *Camera) Viewport() projection.Viewport { return c.viewport }

// Projection returns the full-range perspective projection.
func (c *Camera) Projection() f32.Mat4 {
	return projection.Perspective(c.fov, c.aspect, c.near, c.far)
}

// CameraToWorld returns the camera-to-world matrix.
func (c *Camera) CameraToWorld() f32.Mat4 {
	return c.transform.Matrix()
}

// WorldToCamera returns the view matrix.
func (c *Camera) WorldToCamera() f32.Mat4 {
	m, _ := projection.Inverse(c.transform.Matrix())
	return m
}

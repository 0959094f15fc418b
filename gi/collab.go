package gi

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/framebuf"
)

// Light is the spot light that illuminates the captured scene.
type Light interface {
	Enabled() bool
	SetEnabled(on bool)
	Intensity() float32
	SetIntensity(v float32)
	Range() float32
	SpotAngle() float32
}

// AmbientSettings is the scene-wide ambient lighting.
type AmbientSettings interface {
	Color() f32.Vec3
	SetColor(c f32.Vec3)
	Intensity() float32
	SetIntensity(v float32)
}

// CaptureCamera renders the scene into capture buffers.
type CaptureCamera interface {
	SetFarClip(d float32)
	SetFieldOfView(deg float32)

	// Render writes the lit scene color.
	Render(dst *framebuf.Buffer) error
	// RenderPositions writes world positions encoded as pos/boundary*0.5+0.5.
	RenderPositions(dst *framebuf.Buffer, boundary float32) error
	// RenderNormals writes world normals encoded as n*0.5+0.5.
	RenderNormals(dst *framebuf.Buffer) error
}

// ViewCamera is the camera whose frame receives indirect light.
type ViewCamera interface {
	// Projection returns the full-range (OpenGL convention) projection.
	Projection() f32.Mat4
	CameraToWorld() f32.Mat4
}

// Package world provides reference scene collaborators for the screenfx
// pipelines: cameras, a spot light, ambient settings, analytic primitives
// and a ray-cast renderer that fills G-buffers and capture buffers.
//
// Hosts with their own engine implement the small interfaces in package gi
// and the frame inputs of package ssr instead of using this package.
package world

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/projection"
)

// Transform places an object in the world. Angles are in degrees.
// A camera and a light sharing one *Transform move together.
type Transform struct {
	Position f32.Vec3
	Yaw      float32
	Pitch    float32
}

// Matrix returns the local-to-world matrix: translate, then yaw about +Y,
// then pitch about +X.
func (t *Transform) Matrix() f32.Mat4 {
	const deg = math32.Pi / 180
	m := projection.Mul(projection.Translation(t.Position), projection.RotationY(t.Yaw*deg))
	return projection.Mul(m, projection.RotationX(t.Pitch*deg))
}

// Forward returns the world-space direction of local -Z.
func (t *Transform) Forward() f32.Vec3 {
	return projection.Normalize(projection.TransformDir(t.Matrix(), f32.Vec3{0, 0, -1}))
}

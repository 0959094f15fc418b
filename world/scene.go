package world

import (
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/projection"
)

// Object pairs a shape with its material.
type Object struct {
	Shape    Shape
	Material Material
}

// Scene is a list of objects lit by one spot light and ambient settings.
type Scene struct {
	Objects    []Object
	Light      *SpotLight
	Ambient    *Ambient
	Background f32.Vec3
}

// NewScene creates an empty scene.
func NewScene(light *SpotLight, ambient *Ambient) *Scene {
	return &Scene{Light: light, Ambient: ambient}
}

// Add appends an object.
func (s *Scene) Add(shape Shape, mat Material) {
	s.Objects = append(s.Objects, Object{Shape: shape, Material: mat})
}

// Intersect returns the nearest hit along r in (tMin, tMax).
func (s *Scene) Intersect(r Ray, tMin, tMax float32) (Hit, bool) {
	var best Hit
	found := false
	closest := tMax
	var rec Hit
	for _, o := range s.Objects {
		if o.Shape.Hit(r, tMin, closest, &rec) {
			found = true
			closest = rec.T
			rec.Material = o.Material
			best = rec
		}
	}
	return best, found
}

// Occluded reports whether anything blocks the segment from p to q.
func (s *Scene) Occluded(p, q f32.Vec3) bool {
	d := projection.Sub(q, p)
	dist := projection.Length(d)
	if dist <= 1e-4 {
		return false
	}
	r := Ray{Origin: p, Dir: projection.Scale(d, 1/dist)}
	_, hit := s.Intersect(r, 1e-3, dist-1e-3)
	return hit
}

// Shade returns the lit color of a hit: emission, plus albedo times the
// ambient radiance, plus albedo times the unoccluded spot light.
func (s *Scene) Shade(h Hit) f32.Vec3 {
	c := h.Material.Emission
	if s.Ambient != nil {
		c = projection.Add(c, projection.Mul3(h.Material.Albedo, s.Ambient.Radiance()))
	}
	if s.Light != nil {
		direct := s.Light.Illuminate(h.Point, h.Normal)
		if direct != (f32.Vec3{}) {
			origin := projection.Add(h.Point, projection.Scale(h.Normal, 1e-3))
			if !s.Occluded(origin, s.Light.Position()) {
				c = projection.Add(c, projection.Mul3(h.Material.Albedo, direct))
			}
		}
	}
	return c
}

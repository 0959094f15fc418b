package world

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/projection"
)

// Ray is a half-line from Origin along unit direction Dir.
type Ray struct {
	Origin f32.Vec3
	Dir    f32.Vec3
}

// At returns the point at distance t.
func (r Ray) At(t float32) f32.Vec3 {
	return projection.Add(r.Origin, projection.Scale(r.Dir, t))
}

// Hit records a ray intersection.
type Hit struct {
	T        float32
	Point    f32.Vec3
	Normal   f32.Vec3
	Material Material
}

// Material describes how a surface reflects and emits light.
type Material struct {
	Albedo   f32.Vec3
	Emission f32.Vec3
}

// Shape is an analytic primitive.
type Shape interface {
	// Hit reports the nearest intersection in (tMin, tMax). The normal in
	// rec faces against the ray.
	Hit(r Ray, tMin, tMax float32, rec *Hit) bool
}

// Sphere primitive.
type Sphere struct {
	Center f32.Vec3
	Radius float32
}

func (s Sphere) Hit(r Ray, tMin, tMax float32, rec *Hit) bool {
	oc := projection.Sub(r.Origin, s.Center)
	a := projection.Dot(r.Dir, r.Dir)
	halfB := projection.Dot(oc, r.Dir)
	c := projection.Dot(oc, oc) - s.Radius*s.Radius
	disc := halfB*halfB - a*c
	if disc < 0 {
		return false
	}
	sqrtD := math32.Sqrt(disc)
	root := (-halfB - sqrtD) / a
	if root <= tMin || root >= tMax {
		root = (-halfB + sqrtD) / a
		if root <= tMin || root >= tMax {
			return false
		}
	}
	rec.T = root
	rec.Point = r.At(root)
	setFaceNormal(rec, r, projection.Scale(projection.Sub(rec.Point, s.Center), 1/s.Radius))
	return true
}

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Point  f32.Vec3
	Normal f32.Vec3
}

func (p Plane) Hit(r Ray, tMin, tMax float32, rec *Hit) bool {
	denom := projection.Dot(p.Normal, r.Dir)
	if math32.Abs(denom) < 1e-6 {
		return false
	}
	t := projection.Dot(projection.Sub(p.Point, r.Origin), p.Normal) / denom
	if t <= tMin || t >= tMax {
		return false
	}
	rec.T = t
	rec.Point = r.At(t)
	setFaceNormal(rec, r, p.Normal)
	return true
}

// Box is an axis-aligned box.
type Box struct {
	Min f32.Vec3
	Max f32.Vec3
}

func (b Box) Hit(r Ray, tMin, tMax float32, rec *Hit) bool {
	t0, t1 := tMin, tMax
	axis := 0
	for i := range 3 {
		invD := 1 / r.Dir[i]
		tNear := (b.Min[i] - r.Origin[i]) * invD
		tFar := (b.Max[i] - r.Origin[i]) * invD
		if invD < 0 {
			tNear, tFar = tFar, tNear
		}
		if tNear > t0 {
			t0 = tNear
			axis = i
		}
		if tFar < t1 {
			t1 = tFar
		}
		if t1 <= t0 {
			return false
		}
	}
	if t0 <= tMin {
		// Origin inside the box: report the exit face.
		return false
	}
	rec.T = t0
	rec.Point = r.At(t0)
	var n f32.Vec3
	if r.Dir[axis] > 0 {
		n[axis] = -1
	} else {
		n[axis] = 1
	}
	setFaceNormal(rec, r, n)
	return true
}

func setFaceNormal(rec *Hit, r Ray, outward f32.Vec3) {
	if projection.Dot(r.Dir, outward) < 0 {
		rec.Normal = outward
	} else {
		rec.Normal = projection.Scale(outward, -1)
	}
}

// Attached is a shape defined around the origin and translated by a
// Transform, so animators moving the transform move the shape.
type Attached struct {
	Shape     Shape
	Transform *Transform
}

// Hit intersects in the shape's local frame and moves the result back.
func (a Attached) Hit(r Ray, tMin, tMax float32, rec *Hit) bool {
	off := a.Transform.Position
	local := Ray{Origin: projection.Sub(r.Origin, off), Dir: r.Dir}
	if !a.Shape.Hit(local, tMin, tMax, rec) {
		return false
	}
	rec.Point = projection.Add(rec.Point, off)
	return true
}

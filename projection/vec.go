package projection

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Add returns a+b.
func Add(a, b f32.Vec3) f32.Vec3 { return f32.Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

// Sub returns a-b.
func Sub(a, b f32.Vec3) f32.Vec3 { return f32.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

// Scale returns v*s.
func Scale(v f32.Vec3, s float32) f32.Vec3 { return f32.Vec3{v[0] * s, v[1] * s, v[2] * s} }

// Mul3 returns the component-wise product of a and b.
func Mul3(a, b f32.Vec3) f32.Vec3 { return f32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }

// Dot returns the dot product of a and b.
func Dot(a, b f32.Vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// Cross returns the cross product of a and b.
func Cross(a, b f32.Vec3) f32.Vec3 {
	return f32.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Length returns |v|.
func Length(v f32.Vec3) float32 { return math32.Sqrt(Dot(v, v)) }

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func Normalize(v f32.Vec3) f32.Vec3 {
	l := Length(v)
	if l == 0 {
		return v
	}
	return Scale(v, 1/l)
}

// Reflect reflects incident direction i about unit normal n.
func Reflect(i, n f32.Vec3) f32.Vec3 {
	return Sub(i, Scale(n, 2*Dot(i, n)))
}

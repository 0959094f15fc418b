// Package projection provides the 4x4 matrix math, depth-range conventions
// and screen-space reconstruction constants used by the screenfx pipelines.
//
// Matrices are [f32.Mat4] values in row-major order (m[4*row+col]) and act on
// column vectors. View space is right-handed with the camera looking down -Z.
package projection

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// Identity returns the identity matrix.
func Identity() f32.Mat4 {
	return f32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a*b.
func Mul(a, b f32.Mat4) f32.Mat4 {
	var out f32.Mat4
	for r := range 4 {
		for c := range 4 {
			var s float32
			for k := range 4 {
				s += a[4*r+k] * b[4*k+c]
			}
			out[4*r+c] = s
		}
	}
	return out
}

// Row returns row r of m.
func Row(m f32.Mat4, r int) f32.Vec4 {
	return f32.Vec4{m[4*r], m[4*r+1], m[4*r+2], m[4*r+3]}
}

// Transform returns m*v.
func Transform(m f32.Mat4, v f32.Vec4) f32.Vec4 {
	var out f32.Vec4
	for r := range 4 {
		out[r] = m[4*r]*v[0] + m[4*r+1]*v[1] + m[4*r+2]*v[2] + m[4*r+3]*v[3]
	}
	return out
}

// TransformPoint transforms p as a point (w = 1) and divides by w.
func TransformPoint(m f32.Mat4, p f32.Vec3) f32.Vec3 {
	v := Transform(m, f32.Vec4{p[0], p[1], p[2], 1})
	if v[3] != 0 && v[3] != 1 {
		return f32.Vec3{v[0] / v[3], v[1] / v[3], v[2] / v[3]}
	}
	return f32.Vec3{v[0], v[1], v[2]}
}

// TransformDir transforms d as a direction (w = 0).
func TransformDir(m f32.Mat4, d f32.Vec3) f32.Vec3 {
	v := Transform(m, f32.Vec4{d[0], d[1], d[2], 0})
	return f32.Vec3{v[0], v[1], v[2]}
}

// Inverse returns the inverse of m. The second result is false when m is
// singular, in which case the identity is returned.
func Inverse(m f32.Mat4) (f32.Mat4, bool) {
	var inv f32.Mat4
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if math32.Abs(det) < 1e-12 {
		return Identity(), false
	}
	invDet := 1 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return inv, true
}

// Perspective returns a right-handed perspective projection with clip-space
// depth in [-w, w] (the full-range convention). fovY is in degrees.
func Perspective(fovY, aspect, near, far float32) f32.Mat4 {
	f := 1 / math32.Tan(fovY*math32.Pi/360)
	return f32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	}
}

// Translation returns a matrix translating by t.
func Translation(t f32.Vec3) f32.Mat4 {
	m := Identity()
	m[3], m[7], m[11] = t[0], t[1], t[2]
	return m
}

// RotationY returns a rotation about +Y by angle radians.
func RotationY(angle float32) f32.Mat4 {
	s, c := math32.Sincos(angle)
	return f32.Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationX returns a rotation about +X by angle radians.
func RotationX(angle float32) f32.Mat4 {
	s, c := math32.Sincos(angle)
	return f32.Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// LookAt returns the camera-to-world matrix of a camera at eye looking at
// target. Its inverse is the world-to-camera (view) matrix.
func LookAt(eye, target, up f32.Vec3) f32.Mat4 {
	fwd := Normalize(Sub(target, eye))
	right := Normalize(Cross(fwd, up))
	u := Cross(right, fwd)
	return f32.Mat4{
		right[0], u[0], -fwd[0], eye[0],
		right[1], u[1], -fwd[1], eye[1],
		right[2], u[2], -fwd[2], eye[2],
		0, 0, 0, 1,
	}
}

package projection

import "golang.org/x/image/math/f32"

// EncodePosition maps a world position inside the cube [-boundary, boundary]^3
// to [0, 1]^3, the layout of position capture buffers.
func EncodePosition(p f32.Vec3, boundary float32) f32.Vec3 {
	return f32.Vec3{p[0]/boundary*0.5 + 0.5, p[1]/boundary*0.5 + 0.5, p[2]/boundary*0.5 + 0.5}
}

// DecodePosition inverts EncodePosition.
func DecodePosition(e f32.Vec3, boundary float32) f32.Vec3 {
	return f32.Vec3{(e[0]*2 - 1) * boundary, (e[1]*2 - 1) * boundary, (e[2]*2 - 1) * boundary}
}

// EncodeNormal maps a unit normal to [0, 1]^3.
func EncodeNormal(n f32.Vec3) f32.Vec3 {
	return f32.Vec3{n[0]*0.5 + 0.5, n[1]*0.5 + 0.5, n[2]*0.5 + 0.5}
}

// DecodeNormal inverts EncodeNormal and renormalizes.
func DecodeNormal(e f32.Vec3) f32.Vec3 {
	return Normalize(f32.Vec3{e[0]*2 - 1, e[1]*2 - 1, e[2]*2 - 1})
}

package world

import (
	"testing"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/device"
)

func approx(a, b, tol float32) bool { return math32.Abs(a-b) <= tol }

func vecApprox(t *testing.T, name string, got, want f32.Vec3, tol float32) {
	t.Helper()
	for c := range 3 {
		if !approx(got[c], want[c], tol) {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

// floorScene is a gray floor at y = 0 with a red sphere resting on it,
// lit by a spot light pointing straight down.
func floorScene() (*Scene, *Camera) {
	lightT := &Transform{Position: f32.Vec3{0, 6, 0}, Pitch: -90}
	light := NewSpotLight(WithLightTransform(lightT), WithRange(20), WithSpotAngle(90))
	ambient := NewAmbient(f32.Vec3{0.2, 0.2, 0.2}, 1)
	s := NewScene(light, ambient)
	s.Add(Plane{Point: f32.Vec3{}, Normal: f32.Vec3{0, 1, 0}}, Material{Albedo: f32.Vec3{0.5, 0.5, 0.5}})
	s.Add(Sphere{Center: f32.Vec3{0, 1, 0}, Radius: 1}, Material{Albedo: f32.Vec3{0.8, 0.1, 0.1}})

	camT := &Transform{Position: f32.Vec3{0, 1, 8}}
	cam := NewCamera(camT, WithFieldOfView(60), WithAspect(1), WithClipPlanes(0.3, 100))
	return s, cam
}

func testContext() *device.Context {
	return device.NewContext()
}

package world

import "golang.org/x/image/math/f32"

// Ambient holds the scene-wide ambient lighting settings.
type Ambient struct {
	color     f32.Vec3
	intensity float32
}

// NewAmbient creates ambient settings.
func NewAmbient(color f32.Vec3, intensity float32) *Ambient {
	return &Ambient{color: color, intensity: intensity}
}

// Color returns the ambient color.
func (a *Ambient) Color() f32.Vec3 { return a.color }

// SetColor sets the ambient color.
func (a *Ambient) SetColor(c f32.Vec3) { a.color = c }

// Intensity returns the ambient intensity multiplier.
func (a *Ambient) Intensity() float32 { return a.intensity }

// SetIntensity sets the ambient intensity multiplier.
func (a *Ambient) SetIntensity(v float32) { a.intensity = v }

// Radiance returns color scaled by intensity.
func (a *Ambient) Radiance() f32.Vec3 {
	return f32.Vec3{a.color[0] * a.intensity, a.color[1] * a.intensity, a.color[2] * a.intensity}
}

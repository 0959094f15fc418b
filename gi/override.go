package gi

import "golang.org/x/image/math/f32"

// Isolation selects how a LightingOverride removes the spot light and the
// scene ambient from a capture.
type Isolation uint8

const (
	// DisableLight turns the light off and forces white ambient at full
	// intensity.
	DisableLight Isolation = iota
	// ZeroIntensity sets the light intensity to 0 and the ambient
	// intensity to 1.
	ZeroIntensity
)

// LightingOverride forces capture lighting on creation and puts back the
// exact prior light and ambient state on Restore.
type LightingOverride struct {
	light   Light
	ambient AmbientSettings

	enabled          bool
	intensity        float32
	ambientColor     f32.Vec3
	ambientIntensity float32
	restored         bool
}

// Isolate snapshots light and ambient and applies mode.
func Isolate(light Light, ambient AmbientSettings, mode Isolation) *LightingOverride {
	o := &LightingOverride{
		light:            light,
		ambient:          ambient,
		enabled:          light.Enabled(),
		intensity:        light.Intensity(),
		ambientColor:     ambient.Color(),
		ambientIntensity: ambient.Intensity(),
	}
	switch mode {
	case ZeroIntensity:
		light.SetIntensity(0)
		ambient.SetIntensity(1)
	default:
		light.SetEnabled(false)
		ambient.SetColor(f32.Vec3{1, 1, 1})
		ambient.SetIntensity(1)
	}
	return o
}

// Restore reinstates the snapshot. Calls after the first do nothing.
func (o *LightingOverride) Restore() {
	if o.restored {
		return
	}
	o.restored = true
	o.light.SetEnabled(o.enabled)
	o.light.SetIntensity(o.intensity)
	o.ambient.SetColor(o.ambientColor)
	o.ambient.SetIntensity(o.ambientIntensity)
}

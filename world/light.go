package world

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/projection"
)

// SpotLight is a cone light attached to a Transform; it shines along the
// transform's forward direction.
type SpotLight struct {
	transform *Transform
	color     f32.Vec3
	intensity float32
	rng       float32
	spotAngle float32
	enabled   bool
}

// SpotLightOption configures a SpotLight during construction.
type SpotLightOption func(*SpotLight)

// WithLightTransform attaches the light to t.
func WithLightTransform(t *Transform) SpotLightOption {
	return func(l *SpotLight) { l.transform = t }
}

// WithLightColor sets the RGB color of the light.
func WithLightColor(r, g, b float32) SpotLightOption {
	return func(l *SpotLight) { l.color = f32.Vec3{r, g, b} }
}

// WithLightIntensity sets the scalar intensity multiplier.
func WithLightIntensity(intensity float32) SpotLightOption {
	return func(l *SpotLight) { l.intensity = intensity }
}

// WithRange sets the distance at which the light falls off to zero.
func WithRange(r float32) SpotLightOption {
	return func(l *SpotLight) { l.rng = r }
}

// WithSpotAngle sets the full cone angle in degrees.
func WithSpotAngle(deg float32) SpotLightOption {
	return func(l *SpotLight) { l.spotAngle = deg }
}

// NewSpotLight creates an enabled white spot light.
func NewSpotLight(opts ...SpotLightOption) *SpotLight {
	l := &SpotLight{
		color:     f32.Vec3{1, 1, 1},
		intensity: 1,
		rng:       10,
		spotAngle: 30,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.transform == nil {
		l.transform = &Transform{}
	}
	return l
}

func (l *SpotLight) Enabled() bool            { return l.enabled }
func (l *SpotLight) SetEnabled(on bool)       { l.enabled = on }
func (l *SpotLight) Intensity() float32       { return l.intensity }
func (l *SpotLight) SetIntensity(v float32)   { l.intensity = v }
func (l *SpotLight) Range() float32           { return l.rng }
func (l *SpotLight) SetRange(r float32)       { l.rng = r }
func (l *SpotLight) SpotAngle() float32       { return l.spotAngle }
func (l *SpotLight) SetSpotAngle(deg float32) { l.spotAngle = deg }
func (l *SpotLight) Color() f32.Vec3          { return l.color }
func (l *SpotLight) Transform() *Transform    { return l.transform }
func (l *SpotLight) Position() f32.Vec3       { return l.transform.Position }
func (l *SpotLight) Direction() f32.Vec3      { return l.transform.Forward() }

// Illuminate returns the light arriving at point p with surface normal n,
// ignoring occlusion. A disabled light contributes nothing.
func (l *SpotLight) Illuminate(p, n f32.Vec3) f32.Vec3 {
	if !l.enabled || l.intensity <= 0 {
		return f32.Vec3{}
	}
	toLight := projection.Sub(l.Position(), p)
	d := projection.Length(toLight)
	if d <= 0 || d >= l.rng {
		return f32.Vec3{}
	}
	dir := projection.Scale(toLight, 1/d)
	ndotl := projection.Dot(n, dir)
	if ndotl <= 0 {
		return f32.Vec3{}
	}

	cosOuter := math32.Cos(l.spotAngle * 0.5 * math32.Pi / 180)
	cosInner := math32.Cos(l.spotAngle * 0.45 * math32.Pi / 180)
	cosTheta := -projection.Dot(dir, l.Direction())
	cone := smoothstep(cosOuter, cosInner, cosTheta)
	if cone <= 0 {
		return f32.Vec3{}
	}

	r := d / l.rng
	atten := 1 / (1 + 25*r*r) * (1 - r)
	return projection.Scale(l.color, l.intensity*ndotl*cone*atten)
}

func smoothstep(e0, e1, x float32) float32 {
	t := (x - e0) / (e1 - e0)
	t = math32.Max(0, math32.Min(1, t))
	return t * t * (3 - 2*t)
}

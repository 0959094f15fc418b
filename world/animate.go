package world

import "github.com/chewxy/math32"

// Animator advances with frame time.
type Animator interface {
	Update(dt float32)
}

// AngleChanger swings a transform's yaw back and forth. The yaw grows by
// Speed degrees per second; the direction flips after SwitchTimer seconds
// and then every 2*SwitchTimer seconds, so the swing is symmetric.
type AngleChanger struct {
	Target      *Transform
	Speed       float32
	SwitchTimer float32

	factor     float32
	angle      float32
	elapsed    float32
	nextSwitch float32
}

// NewAngleChanger creates an AngleChanger with speed 10 and switch timer 5.
func NewAngleChanger(target *Transform) *AngleChanger {
	return &AngleChanger{Target: target, Speed: 10, SwitchTimer: 5}
}

// Update advances the animation by dt seconds.
func (a *AngleChanger) Update(dt float32) {
	if a.factor == 0 {
		a.factor = 1
		a.nextSwitch = a.SwitchTimer
	}
	a.elapsed += dt
	for a.SwitchTimer > 0 && a.elapsed >= a.nextSwitch {
		a.factor = -a.factor
		a.nextSwitch += 2 * a.SwitchTimer
	}
	a.angle += dt * a.Speed * a.factor
	a.Target.Yaw = a.angle
}

// Angle returns the current yaw in degrees.
func (a *AngleChanger) Angle() float32 { return a.angle }

// Oscillator moves a transform up and down: y = Base + sin(angle)*Amplitude,
// with angle advancing Speed radians per second.
type Oscillator struct {
	Target    *Transform
	Speed     float32
	Base      float32
	Amplitude float32

	angle float32
}

// NewOscillator creates an Oscillator around y = 5 with amplitude 3.
func NewOscillator(target *Transform, speed float32) *Oscillator {
	return &Oscillator{Target: target, Speed: speed, Base: 5, Amplitude: 3}
}

// Update advances the animation by dt seconds.
func (o *Oscillator) Update(dt float32) {
	o.angle += dt * o.Speed
	o.Target.Position[1] = o.Base + math32.Sin(o.angle)*o.Amplitude
}

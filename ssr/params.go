package ssr

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/gogpu/screenfx"
)

// QualityModel selects the reflection algorithm.
type QualityModel uint8

const (
	// Normal is a linear ray march followed by blur.
	Normal QualityModel = iota
	// Prototype is the length/cone/filter/blur pipeline.
	Prototype
)

func (m QualityModel) String() string {
	switch m {
	case Normal:
		return "NORMAL"
	case Prototype:
		return "PROTOTYPE"
	default:
		return fmt.Sprintf("QualityModel(%d)", m)
	}
}

// IsValid reports whether m names a known model.
func (m QualityModel) IsValid() bool { return m <= Prototype }

// ParseQualityModel parses "NORMAL" or "PROTOTYPE".
func ParseQualityModel(s string) (QualityModel, error) {
	switch s {
	case "NORMAL", "normal":
		return Normal, nil
	case "PROTOTYPE", "prototype":
		return Prototype, nil
	}
	return 0, fmt.Errorf("%w: unknown quality model %q", screenfx.ErrConfig, s)
}

// SampleTier is the number of cone samples taken per reflection pixel.
type SampleTier uint8

const (
	Low    SampleTier = 1
	Medium SampleTier = 7
	High   SampleTier = 13
)

func (t SampleTier) String() string {
	switch t {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return fmt.Sprintf("SampleTier(%d)", uint8(t))
	}
}

// IsValid reports whether t is one of Low, Medium or High.
func (t SampleTier) IsValid() bool { return t == Low || t == Medium || t == High }

// ParseSampleTier parses "LOW", "MEDIUM" or "HIGH".
func ParseSampleTier(s string) (SampleTier, error) {
	switch s {
	case "LOW", "low":
		return Low, nil
	case "MEDIUM", "medium":
		return Medium, nil
	case "HIGH", "high":
		return High, nil
	}
	return 0, fmt.Errorf("%w: unknown sample tier %q", screenfx.ErrConfig, s)
}

// Parameters configures one frame of reflections. Pipelines take Parameters
// by value and never modify them.
//
// Ray steps are in pixels of the source frame; depth values (biases and the
// cut-off) are view-space units.
type Parameters struct {
	// NORMAL model.
	Downsample          int     `toml:"downsample"`
	ZBiasNormal         float32 `toml:"z_bias_normal"`
	RayTraceStepNormal  float32 `toml:"ray_trace_step_normal"`
	MaxIterationsNormal int     `toml:"max_iterations_normal"`

	// PROTOTYPE model.
	Samples                      SampleTier `toml:"-"`
	LengthDownsample             int        `toml:"length_downsample"`
	ReflectionsDownsample        int        `toml:"reflections_downsample"`
	RayLengthCutOff              float32    `toml:"ray_length_cut_off"`
	ConeLengthOffset             float32    `toml:"cone_length_offset"`
	ConeAngle                    float32    `toml:"cone_angle"`
	MultiplicativeDecreaseFactor float32    `toml:"multiplicative_decrease_factor"`
	MultiplicativeIncreaseFactor float32    `toml:"multiplicative_increase_factor"`
	ZBias                        float32    `toml:"z_bias"`
	RayTraceStep                 float32    `toml:"ray_trace_step"`
	MaxIterations                int        `toml:"max_iterations"`
	LengthBlurIterations         int        `toml:"length_blur_iterations"`
	LengthBlurStep               float32    `toml:"length_blur_step"`
	LengthBlurThreshold          float32    `toml:"length_blur_threshold"`
	FilterStep                   float32    `toml:"filter_step"`
	FilterThreshold              float32    `toml:"filter_threshold"`
	MinimumReflectionIntensity   float32    `toml:"minimum_reflection_intensity"`

	// Both models.
	BlurStep           float32 `toml:"blur_step"`
	BlurIterations     int     `toml:"blur_iterations"`
	DepthCutOff        float32 `toml:"depth_cut_off"`
	ReflectionStrength float32 `toml:"reflection_strength"`
}

// DefaultParameters returns the stock reflection settings.
func DefaultParameters() Parameters {
	return Parameters{
		Downsample:          1,
		ZBiasNormal:         0.1,
		RayTraceStepNormal:  10,
		MaxIterationsNormal: 32,

		Samples:                      Medium,
		LengthDownsample:             1,
		ReflectionsDownsample:        1,
		RayLengthCutOff:              0.05,
		ConeLengthOffset:             0.1,
		ConeAngle:                    20,
		MultiplicativeDecreaseFactor: 0.5,
		MultiplicativeIncreaseFactor: 1,
		ZBias:                        0.1,
		RayTraceStep:                 10,
		MaxIterations:                32,
		LengthBlurIterations:         0,
		LengthBlurStep:               1,
		LengthBlurThreshold:          0.1,
		FilterStep:                   1,
		FilterThreshold:              0.1,
		MinimumReflectionIntensity:   0.2,

		BlurStep:           1,
		BlurIterations:     2,
		DepthCutOff:        50,
		ReflectionStrength: 0.3,
	}
}

// Validate checks p for values no pass can run with.
func (p Parameters) Validate() error {
	ints := []struct {
		name string
		v    int
		min  int
	}{
		{"downsample", p.Downsample, 1},
		{"max_iterations_normal", p.MaxIterationsNormal, 1},
		{"length_downsample", p.LengthDownsample, 1},
		{"reflections_downsample", p.ReflectionsDownsample, 1},
		{"max_iterations", p.MaxIterations, 1},
		{"length_blur_iterations", p.LengthBlurIterations, 0},
		{"blur_iterations", p.BlurIterations, 0},
	}
	for _, f := range ints {
		if f.v < f.min {
			return fmt.Errorf("%w: ssr %s = %d, want >= %d", screenfx.ErrConfig, f.name, f.v, f.min)
		}
	}

	positive := []struct {
		name string
		v    float32
	}{
		{"ray_trace_step_normal", p.RayTraceStepNormal},
		{"ray_trace_step", p.RayTraceStep},
		{"multiplicative_decrease_factor", p.MultiplicativeDecreaseFactor},
		{"multiplicative_increase_factor", p.MultiplicativeIncreaseFactor},
		{"depth_cut_off", p.DepthCutOff},
	}
	for _, f := range positive {
		if !(f.v > 0) || math32.IsInf(f.v, 0) {
			return fmt.Errorf("%w: ssr %s = %v, want > 0", screenfx.ErrConfig, f.name, f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    float32
	}{
		{"z_bias_normal", p.ZBiasNormal},
		{"z_bias", p.ZBias},
		{"ray_length_cut_off", p.RayLengthCutOff},
		{"cone_length_offset", p.ConeLengthOffset},
		{"cone_angle", p.ConeAngle},
		{"length_blur_step", p.LengthBlurStep},
		{"length_blur_threshold", p.LengthBlurThreshold},
		{"filter_step", p.FilterStep},
		{"filter_threshold", p.FilterThreshold},
		{"minimum_reflection_intensity", p.MinimumReflectionIntensity},
		{"blur_step", p.BlurStep},
		{"reflection_strength", p.ReflectionStrength},
	}
	for _, f := range nonNegative {
		if !(f.v >= 0) || math32.IsInf(f.v, 0) {
			return fmt.Errorf("%w: ssr %s = %v, want >= 0", screenfx.ErrConfig, f.name, f.v)
		}
	}

	if p.MultiplicativeDecreaseFactor > 1 {
		return fmt.Errorf("%w: ssr multiplicative_decrease_factor = %v, want <= 1",
			screenfx.ErrConfig, p.MultiplicativeDecreaseFactor)
	}
	if p.ConeAngle >= 180 {
		return fmt.Errorf("%w: ssr cone_angle = %v, want < 180", screenfx.ErrConfig, p.ConeAngle)
	}
	if !p.Samples.IsValid() {
		return fmt.Errorf("%w: ssr samples = %s", screenfx.ErrConfig, p.Samples)
	}
	return nil
}

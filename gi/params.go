package gi

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
)

// Parameters configures indirect lighting.
type Parameters struct {
	RenderSize            int      `toml:"render_size"`
	WorldVolumeBoundary   float32  `toml:"world_volume_boundary"`
	FirstBounceStrength   float32  `toml:"first_bounce_strength"`
	AmbientMultiplyFactor float32  `toml:"ambient_multiply_factor"`
	AmbientLightColor     f32.Vec3 `toml:"ambient_light_color"`
	AttenuationFactor     float32  `toml:"attenuation_factor"`
	DistanceThreshold     float32  `toml:"distance_threshold"`
}

// DefaultParameters returns an 8x8 grid in a 10-unit world volume with gray
// ambient light.
func DefaultParameters() Parameters {
	return Parameters{
		RenderSize:            8,
		WorldVolumeBoundary:   10,
		FirstBounceStrength:   1,
		AmbientMultiplyFactor: 1,
		AmbientLightColor:     f32.Vec3{0.5, 0.5, 0.5},
		AttenuationFactor:     0.1,
		DistanceThreshold:     0.05,
	}
}

// Validate rejects parameters no frame can be shaded with.
func (p Parameters) Validate() error {
	if p.RenderSize <= 0 {
		return fmt.Errorf("%w: gi render_size = %d, want > 0", screenfx.ErrConfig, p.RenderSize)
	}
	if !(p.WorldVolumeBoundary > 0) {
		return fmt.Errorf("%w: gi world_volume_boundary = %v, want > 0", screenfx.ErrConfig, p.WorldVolumeBoundary)
	}
	for _, f := range []struct {
		name string
		v    float32
	}{
		{"first_bounce_strength", p.FirstBounceStrength},
		{"ambient_multiply_factor", p.AmbientMultiplyFactor},
		{"attenuation_factor", p.AttenuationFactor},
		{"distance_threshold", p.DistanceThreshold},
	} {
		if !(f.v >= 0) {
			return fmt.Errorf("%w: gi %s = %v, want >= 0", screenfx.ErrConfig, f.name, f.v)
		}
	}
	return nil
}

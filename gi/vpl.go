package gi

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
)

// VPL is a virtual point light. The layout matches the 24-byte stride of
// the packed VPL buffer.
type VPL struct {
	Color    [3]float32
	Position [3]float32
}

// SplattingMode selects the VPL back-end.
type SplattingMode uint8

const (
	// CPU reads the capture buffers back to host memory as 8-bit RGB.
	CPU SplattingMode = iota
	// Compute fills a packed VPL buffer with one workgroup per capture texel.
	Compute
	// GPU samples the capture buffers directly while shading.
	GPU
)

func (m SplattingMode) String() string {
	switch m {
	case CPU:
		return "CPU"
	case Compute:
		return "COMPUTE"
	case GPU:
		return "GPU"
	default:
		return fmt.Sprintf("SplattingMode(%d)", m)
	}
}

// IsValid reports whether m is a known mode.
func (m SplattingMode) IsValid() bool { return m <= GPU }

// Next returns the mode after m in the cycle COMPUTE, CPU, GPU, COMPUTE.
func (m SplattingMode) Next() SplattingMode {
	switch m {
	case Compute:
		return CPU
	case CPU:
		return GPU
	default:
		return Compute
	}
}

// ParseSplattingMode parses "CPU", "COMPUTE" or "GPU".
func ParseSplattingMode(s string) (SplattingMode, error) {
	switch s {
	case "CPU", "cpu":
		return CPU, nil
	case "COMPUTE", "compute":
		return Compute, nil
	case "GPU", "gpu":
		return GPU, nil
	}
	return 0, fmt.Errorf("%w: unknown splatting mode %q", screenfx.ErrConfig, s)
}

// VPLSet is the per-frame set of virtual point lights. Sets returned by a
// Generator are valid until its next Generate call.
type VPLSet interface {
	// Len returns renderSize².
	Len() int
	// At returns light i; i = row*renderSize + column of the capture grid.
	At(i int) VPL
	// Normal returns the world normal of the surface light i sits on, when
	// the capture recorded normals.
	Normal(i int) (f32.Vec3, bool)
}

// arraySet is a materialized VPL array.
type arraySet struct {
	vpls    []VPL
	normals []f32.Vec3
}

func (s *arraySet) Len() int     { return len(s.vpls) }
func (s *arraySet) At(i int) VPL { return s.vpls[i] }
func (s *arraySet) Normal(i int) (f32.Vec3, bool) {
	if s.normals == nil {
		return f32.Vec3{}, false
	}
	return s.normals[i], true
}

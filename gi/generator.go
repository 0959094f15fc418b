package gi

import (
	_ "embed"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/projection"
)

//go:embed shaders/vpl_splat.wgsl
var vplSplatWGSL string

// Generator turns capture buffers into VPL sets. Its storage is fixed at
// renderSize² entries and fully overwritten by every Generate.
type Generator struct {
	kernel     *device.Kernel
	renderSize int
	boundary   float32

	// Compute
	vpls    []VPL
	normals []f32.Vec3

	// CPU readback, 8-bit RGB like an RGB24 texture.
	colorReadback    []f32.Vec4
	positionReadback []f32.Vec4
	normalReadback   []f32.Vec4
}

// NewGenerator creates a generator for a renderSize by renderSize capture
// grid and compiles its splat kernel on ctx.
func NewGenerator(ctx *device.Context, renderSize int, boundary float32) (*Generator, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: gi generator needs a context", screenfx.ErrConfig)
	}
	if renderSize <= 0 {
		return nil, fmt.Errorf("%w: gi render size %d, want > 0", screenfx.ErrConfig, renderSize)
	}
	if !(boundary > 0) {
		return nil, fmt.Errorf("%w: gi world volume boundary %v, want > 0", screenfx.ErrConfig, boundary)
	}
	n := renderSize * renderSize
	k, err := ctx.NewKernel(device.KernelDesc{
		Label:      "gi_vpl_splat",
		Source:     vplSplatWGSL,
		EntryPoint: "splat_main",
		Bindings: []device.Binding{
			{Kind: device.BindingUniform, MinSize: 16},
			{Kind: device.BindingReadOnlyStorage, MinSize: uint64(n) * 16},
			{Kind: device.BindingReadOnlyStorage, MinSize: uint64(n) * 16},
			{Kind: device.BindingStorage, MinSize: uint64(n) * 24},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gi: %w", err)
	}
	return &Generator{
		kernel:           k,
		renderSize:       renderSize,
		boundary:         boundary,
		vpls:             make([]VPL, n),
		normals:          make([]f32.Vec3, n),
		colorReadback:    make([]f32.Vec4, n),
		positionReadback: make([]f32.Vec4, n),
		normalReadback:   make([]f32.Vec4, n),
	}, nil
}

// Kernel returns the splat kernel.
func (g *Generator) Kernel() *device.Kernel { return g.kernel }

// RenderSize returns the side of the capture grid.
func (g *Generator) RenderSize() int { return g.renderSize }

// Destroy releases the kernel's GPU objects.
func (g *Generator) Destroy() { g.kernel.Destroy() }

// Generate builds the VPL set for the current capture contents.
func (g *Generator) Generate(mode SplattingMode, c *Capture) (VPLSet, error) {
	if c == nil || !c.Initialized() {
		return nil, ErrNotInitialized
	}
	direct, position := c.Direct(), c.Position()
	if direct == nil || position == nil {
		return nil, fmt.Errorf("%w: gi %s capture has no color and position buffers", screenfx.ErrConfig, c.Variant())
	}
	rs := g.renderSize
	for _, b := range []*framebuf.Buffer{direct, position} {
		if b.Width() != rs || b.Height() != rs {
			return nil, fmt.Errorf("%w: gi capture %dx%d, generator grid %d", framebuf.ErrSizeMismatch, b.Width(), b.Height(), rs)
		}
	}
	normal := c.Normal()
	if normal != nil && (normal.Width() != rs || normal.Height() != rs) {
		normal = nil
	}

	switch mode {
	case Compute:
		return g.compute(direct, position, normal), nil
	case CPU:
		return g.readback(direct, position, normal), nil
	case GPU:
		return &textureSet{direct: direct, position: position, normal: normal, renderSize: rs, boundary: g.boundary}, nil
	default:
		return nil, fmt.Errorf("%w: gi %s", screenfx.ErrConfig, mode)
	}
}

// compute runs the splat kernel, one workgroup per capture texel. Dispatch
// returns after every group has finished, so the array is complete when it
// is handed to shading.
func (g *Generator) compute(direct, position, normal *framebuf.Buffer) VPLSet {
	rs := g.renderSize
	var bufs [][]byte
	if g.kernel.PipelineReady() {
		bufs = [][]byte{
			device.Params{}.U32(uint32(rs)).F32(g.boundary).U32(0).U32(0),
			device.Float32Bytes(texels4(direct)),
			device.Float32Bytes(texels4(position)),
			make([]byte, rs*rs*24),
		}
	}
	onDevice := g.kernel.Dispatch(rs, rs, bufs, func(x, y int) {
		c := direct.At(x, y)
		p := position.At(x, y)
		wp := projection.DecodePosition(f32.Vec3{p[0], p[1], p[2]}, g.boundary)
		g.vpls[y*rs+x] = VPL{
			Color:    [3]float32{c[0], c[1], c[2]},
			Position: [3]float32{wp[0], wp[1], wp[2]},
		}
		if normal != nil {
			n := normal.At(x, y)
			g.normals[y*rs+x] = projection.DecodeNormal(f32.Vec3{n[0], n[1], n[2]})
		}
	})
	if onDevice {
		var packed [6]float32
		out := bufs[3]
		for i := range g.vpls {
			device.ReadFloat32s(packed[:], out[i*24:])
			g.vpls[i] = VPL{
				Color:    [3]float32{packed[0], packed[1], packed[2]},
				Position: [3]float32{packed[3], packed[4], packed[5]},
			}
		}
		if normal != nil {
			for i := range g.normals {
				n := normal.At(i%rs, i/rs)
				g.normals[i] = projection.DecodeNormal(f32.Vec3{n[0], n[1], n[2]})
			}
		}
	}
	set := &arraySet{vpls: g.vpls}
	if normal != nil {
		set.normals = g.normals
	}
	return set
}

// texels4 returns the texels of b as four floats each, the layout of a
// vec4<f32> storage array.
func texels4(b *framebuf.Buffer) []float32 {
	if b.Format().Channels() == 4 {
		return b.Data()
	}
	out := make([]float32, 0, b.Width()*b.Height()*4)
	for y := range b.Height() {
		for x := range b.Width() {
			v := b.At(x, y)
			out = append(out, v[0], v[1], v[2], v[3])
		}
	}
	return out
}

// readback copies the capture buffers into flat 8-bit RGB arrays, the way a
// ReadPixels into an RGB24 texture would. Alpha reads back as 1.
func (g *Generator) readback(direct, position, normal *framebuf.Buffer) VPLSet {
	rs := g.renderSize
	read := func(b *framebuf.Buffer, dst []f32.Vec4) {
		for y := range rs {
			for x := range rs {
				v := b.At(x, y)
				dst[y*rs+x] = f32.Vec4{rgb24(v[0]), rgb24(v[1]), rgb24(v[2]), 1}
			}
		}
	}
	read(direct, g.colorReadback)
	read(position, g.positionReadback)
	set := &readbackSet{colors: g.colorReadback, positions: g.positionReadback, boundary: g.boundary}
	if normal != nil {
		read(normal, g.normalReadback)
		set.normals = g.normalReadback
	}
	return set
}

func rgb24(v float32) float32 {
	return math32.Round(math32.Max(0, math32.Min(1, v))*255) / 255
}

// readbackSet decodes VPLs from read-back pixel arrays.
type readbackSet struct {
	colors    []f32.Vec4
	positions []f32.Vec4
	normals   []f32.Vec4
	boundary  float32
}

func (s *readbackSet) Len() int { return len(s.colors) }

func (s *readbackSet) At(i int) VPL {
	c, p := s.colors[i], s.positions[i]
	wp := projection.DecodePosition(f32.Vec3{p[0], p[1], p[2]}, s.boundary)
	return VPL{Color: [3]float32{c[0], c[1], c[2]}, Position: [3]float32{wp[0], wp[1], wp[2]}}
}

func (s *readbackSet) Normal(i int) (f32.Vec3, bool) {
	if s.normals == nil {
		return f32.Vec3{}, false
	}
	n := s.normals[i]
	return projection.DecodeNormal(f32.Vec3{n[0], n[1], n[2]}), true
}

// textureSet samples the capture buffers at cell centers on demand; no VPL
// array is materialized.
type textureSet struct {
	direct, position, normal *framebuf.Buffer
	renderSize               int
	boundary                 float32
}

func (s *textureSet) Len() int { return s.renderSize * s.renderSize }

// uv returns the center of cell i, stepping 1/renderSize per cell.
func (s *textureSet) uv(i int) (float32, float32) {
	step := 1 / float32(s.renderSize)
	x, y := i%s.renderSize, i/s.renderSize
	return (float32(x) + 0.5) * step, (float32(y) + 0.5) * step
}

func (s *textureSet) At(i int) VPL {
	u, v := s.uv(i)
	c := s.direct.SampleBilinear(u, v)
	p := s.position.SampleBilinear(u, v)
	wp := projection.DecodePosition(f32.Vec3{p[0], p[1], p[2]}, s.boundary)
	return VPL{Color: [3]float32{c[0], c[1], c[2]}, Position: [3]float32{wp[0], wp[1], wp[2]}}
}

func (s *textureSet) Normal(i int) (f32.Vec3, bool) {
	if s.normal == nil {
		return f32.Vec3{}, false
	}
	u, v := s.uv(i)
	n := s.normal.SampleBilinear(u, v)
	return projection.DecodeNormal(f32.Vec3{n[0], n[1], n[2]}), true
}

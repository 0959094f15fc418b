package ssr

import (
	_ "embed"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
)

//go:embed shaders/blur.wgsl
var blurWGSL string

//go:embed shaders/edge_filter.wgsl
var edgeFilterWGSL string

//go:embed shaders/composite.wgsl
var compositeWGSL string

// tile is the @workgroup_size of every stage shader.
var tile = [2]int{8, 8}

// blurWeights is the 5-tap binomial kernel (1, 4, 6, 4, 1) / 16.
var blurWeights = [5]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// Stages holds the filter and blend kernels shared by both quality models.
type Stages struct {
	blur        *device.Kernel
	blurGuarded *device.Kernel
	edge        *device.Kernel
	composite   *device.Kernel
}

// NewStages compiles the stage kernels on ctx.
func NewStages(ctx *device.Context) (*Stages, error) {
	texel := []device.Binding{
		{Kind: device.BindingUniform, MinSize: 32},
		{Kind: device.BindingReadOnlyStorage},
		{Kind: device.BindingStorage},
	}
	descs := []device.KernelDesc{
		{Label: "ssr_blur", Source: blurWGSL, EntryPoint: "blur_main", Bindings: texel, Workgroup: tile},
		{Label: "ssr_blur_guarded", Source: blurWGSL, EntryPoint: "blur_guarded_main", Bindings: texel, Workgroup: tile},
		{Label: "ssr_edge_filter", Source: edgeFilterWGSL, EntryPoint: "edge_main", Workgroup: tile, Bindings: []device.Binding{
			{Kind: device.BindingUniform, MinSize: 16},
			{Kind: device.BindingReadOnlyStorage},
			{Kind: device.BindingStorage},
		}},
		{Label: "ssr_composite", Source: compositeWGSL, EntryPoint: "composite_main", Workgroup: tile, Bindings: []device.Binding{
			{Kind: device.BindingUniform, MinSize: 48},
			{Kind: device.BindingReadOnlyStorage},
			{Kind: device.BindingReadOnlyStorage},
			{Kind: device.BindingReadOnlyStorage},
			{Kind: device.BindingStorage},
		}},
	}
	kernels := make([]*device.Kernel, 0, len(descs))
	for _, d := range descs {
		k, err := ctx.NewKernel(d)
		if err != nil {
			for _, built := range kernels {
				built.Destroy()
			}
			return nil, fmt.Errorf("ssr: %w", err)
		}
		kernels = append(kernels, k)
	}
	return &Stages{blur: kernels[0], blurGuarded: kernels[1], edge: kernels[2], composite: kernels[3]}, nil
}

// Kernels returns the stage kernels.
func (s *Stages) Kernels() []*device.Kernel {
	return []*device.Kernel{s.blur, s.blurGuarded, s.edge, s.composite}
}

// Destroy releases the kernels' GPU objects.
func (s *Stages) Destroy() {
	for _, k := range s.Kernels() {
		if k != nil {
			k.Destroy()
		}
	}
}

func checkPair(a, b *framebuf.Buffer) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: ssr stage buffer is nil", framebuf.ErrSizeMismatch)
	}
	if a == b {
		return fmt.Errorf("%w: ssr stage reads and writes the same buffer", framebuf.ErrSizeMismatch)
	}
	if !a.SameShape(b) {
		return fmt.Errorf("%w: ssr stage buffers %dx%d %s and %dx%d %s", framebuf.ErrSizeMismatch,
			a.Width(), a.Height(), a.Format(), b.Width(), b.Height(), b.Format())
	}
	return nil
}

// tap linearly interpolates along one axis at a fractional texel offset
// from (x, y), clamped to the edges.
func tap(b *framebuf.Buffer, x, y int, offset float32, horizontal bool) f32.Vec4 {
	base := math32.Floor(offset)
	t := offset - base
	o := int(base)
	var c0, c1 f32.Vec4
	if horizontal {
		c0, c1 = b.Load(x+o, y), b.Load(x+o+1, y)
	} else {
		c0, c1 = b.Load(x, y+o), b.Load(x, y+o+1)
	}
	var out f32.Vec4
	for c := range 4 {
		out[c] = c0[c] + (c1[c]-c0[c])*t
	}
	return out
}

func (s *Stages) blurPass(src, dst *framebuf.Buffer, step float32, horizontal bool) {
	w := src.Width()
	var bufs [][]byte
	if s.blur.PipelineReady() {
		bufs = texelBindings(blurParams(src, step, 0, horizontal), src, dst)
	}
	onDevice := s.blur.DispatchTexels(w, src.Height(), bufs, func(y int) {
		for x := range w {
			var sum f32.Vec4
			for i, wt := range blurWeights {
				v := tap(src, x, y, float32(i-2)*step, horizontal)
				for c := range 4 {
					sum[c] += wt * v[c]
				}
			}
			dst.Set(x, y, sum)
		}
	})
	if onDevice {
		storeResult(dst, bufs[2])
	}
}

// Blur runs iterations of a separable blur: horizontal from a into b, then
// vertical from b back into a. The result is in a. With zero iterations
// neither buffer is touched.
func (s *Stages) Blur(a, b *framebuf.Buffer, iterations int, step float32) error {
	if err := checkPair(a, b); err != nil {
		return err
	}
	for range iterations {
		s.blurPass(a, b, step, true)
		s.blurPass(b, a, step, false)
	}
	return nil
}

func (s *Stages) blurGuardedPass(src, dst *framebuf.Buffer, step, threshold float32, horizontal bool) {
	w := src.Width()
	var bufs [][]byte
	if s.blurGuarded.PipelineReady() {
		bufs = texelBindings(blurParams(src, step, threshold, horizontal), src, dst)
	}
	onDevice := s.blurGuarded.DispatchTexels(w, src.Height(), bufs, func(y int) {
		for x := range w {
			center := src.Value(x, y)
			var sum, total float32
			for i, wt := range blurWeights {
				v := tap(src, x, y, float32(i-2)*step, horizontal)[0]
				if math32.Abs(v-center) < threshold {
					sum += wt * v
					total += wt
				}
			}
			out := center
			if total > 0 {
				out = sum / total
			}
			dst.SetValue(x, y, out)
		}
	})
	if onDevice {
		storeResult(dst, bufs[2])
	}
}

// BlurGuarded is Blur for single-channel length buffers: taps that differ
// from the center by threshold or more are dropped so values do not bleed
// across depth discontinuities.
func (s *Stages) BlurGuarded(a, b *framebuf.Buffer, iterations int, step, threshold float32) error {
	if err := checkPair(a, b); err != nil {
		return err
	}
	if a.Format() != framebuf.FormatR32Float {
		return fmt.Errorf("%w: guarded blur needs %s, got %s",
			framebuf.ErrInvalidFormat, framebuf.FormatR32Float, a.Format())
	}
	for range iterations {
		s.blurGuardedPass(a, b, step, threshold, true)
		s.blurGuardedPass(b, a, step, threshold, false)
	}
	return nil
}

func luminance(c f32.Vec4) float32 {
	return (0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]) * c[3]
}

// EdgeFilter copies src into dst, zeroing texels whose alpha-weighted
// luminance is below threshold or whose neighbor step texels to the right
// is a miss.
func (s *Stages) EdgeFilter(src, dst *framebuf.Buffer, step, threshold float32) error {
	if err := checkPair(src, dst); err != nil {
		return err
	}
	w := src.Width()
	var bufs [][]byte
	if s.edge.PipelineReady() {
		params := device.Params{}.U32(uint32(w)).U32(uint32(src.Height())).F32(step).F32(threshold)
		bufs = texelBindings(params, src, dst)
	}
	onDevice := s.edge.DispatchTexels(w, src.Height(), bufs, func(y int) {
		for x := range w {
			c := src.At(x, y)
			n := tap(src, x, y, step, true)
			if luminance(c) >= threshold && n[3] > 0 {
				dst.Set(x, y, c)
			} else {
				dst.Set(x, y, f32.Vec4{})
			}
		}
	})
	if onDevice {
		storeResult(dst, bufs[2])
	}
	return nil
}

// Composite blends refl onto src into dst. For Prototype, length is the
// normalized hit length buffer; Normal ignores it.
func (s *Stages) Composite(src, refl, length, dst *framebuf.Buffer, params Parameters, model QualityModel) error {
	if src == nil || refl == nil || dst == nil {
		return fmt.Errorf("%w: ssr composite buffer is nil", framebuf.ErrSizeMismatch)
	}
	if dst.Width() != src.Width() || dst.Height() != src.Height() {
		return fmt.Errorf("%w: ssr composite target %dx%d, source %dx%d", framebuf.ErrSizeMismatch,
			dst.Width(), dst.Height(), src.Width(), src.Height())
	}
	if model == Prototype && length == nil {
		return fmt.Errorf("%w: ssr composite needs a length buffer", framebuf.ErrSizeMismatch)
	}
	w, h := dst.Width(), dst.Height()
	var bufs [][]byte
	if s.composite.PipelineReady() {
		bufs = compositeBindings(src, refl, length, dst, params, model)
	}
	onDevice := s.composite.DispatchTexels(w, h, bufs, func(y int) {
		for x := range w {
			u := (float32(x) + 0.5) / float32(w)
			v := (float32(y) + 0.5) / float32(h)
			c := src.At(x, y)
			r := refl.SampleBilinear(u, v)
			weight := r[3]
			if model == Prototype {
				if l := length.SampleNearest(u, v)[0]; l < params.RayLengthCutOff {
					weight = 0
				} else {
					weight = r[3] * math32.Max(1-l, params.MinimumReflectionIntensity)
				}
			}
			k := params.ReflectionStrength * weight
			dst.Set(x, y, f32.Vec4{
				c[0] + (r[0]-c[0])*k,
				c[1] + (r[1]-c[1])*k,
				c[2] + (r[2]-c[2])*k,
				c[3],
			})
		}
	})
	if onDevice {
		storeResult(dst, bufs[4])
	}
	return nil
}

// texelBindings lays out params, src and an output for dst, the binding
// order of the blur and edge shaders.
func texelBindings(params device.Params, src, dst *framebuf.Buffer) [][]byte {
	return [][]byte{params, device.Float32Bytes(src.Data()), make([]byte, len(dst.Data())*4)}
}

func blurParams(src *framebuf.Buffer, step, threshold float32, horizontal bool) device.Params {
	var dir uint32
	if horizontal {
		dir = 1
	}
	return device.Params{}.
		U32(uint32(src.Width())).U32(uint32(src.Height())).
		U32(uint32(src.Format().Channels())).U32(dir).
		F32(step).F32(threshold).U32(0).U32(0)
}

func compositeBindings(src, refl, length, dst *framebuf.Buffer, params Parameters, model QualityModel) [][]byte {
	var mode uint32
	lengths, lw, lh := []float32{0}, 1, 1
	if model == Prototype {
		mode = 1
		lengths, lw, lh = firstChannel(length), length.Width(), length.Height()
	}
	p := device.Params{}.
		U32(uint32(dst.Width())).U32(uint32(dst.Height())).
		U32(uint32(refl.Width())).U32(uint32(refl.Height())).
		U32(uint32(lw)).U32(uint32(lh)).
		U32(mode).U32(0).
		F32(params.ReflectionStrength).F32(params.RayLengthCutOff).
		F32(params.MinimumReflectionIntensity).F32(0)
	return [][]byte{
		p,
		device.Float32Bytes(texels4(src)),
		device.Float32Bytes(texels4(refl)),
		device.Float32Bytes(lengths),
		make([]byte, dst.Width()*dst.Height()*16),
	}
}

// texels4 returns the texels of b as four floats each.
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

func firstChannel(b *framebuf.Buffer) []float32 {
	if b.Format().Channels() == 1 {
		return b.Data()
	}
	out := make([]float32, 0, b.Width()*b.Height())
	for y := range b.Height() {
		for x := range b.Width() {
			out = append(out, b.Value(x, y))
		}
	}
	return out
}

// storeResult copies a device result into dst through the same store path
// as Set, so RGBA8 targets are quantized.
func storeResult(dst *framebuf.Buffer, out []byte) {
	vals := make([]float32, len(dst.Data()))
	device.ReadFloat32s(vals, out)
	_ = dst.SetData(vals)
}

package gi

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/projection"
)

// Frame is the viewing camera's rendered frame.
type Frame struct {
	// Color is the lit scene color.
	Color *framebuf.Buffer
	// Depth is device depth in the context's convention, 1 on background.
	Depth *framebuf.Buffer
	// Normal holds view-space normals; w is 0 where nothing was drawn.
	Normal *framebuf.Buffer
	// Albedo is the surface reflectance.
	Albedo *framebuf.Buffer
}

func (f Frame) validate() error {
	if f.Color == nil || f.Depth == nil || f.Normal == nil || f.Albedo == nil {
		return fmt.Errorf("%w: gi frame is missing a buffer", screenfx.ErrConfig)
	}
	w, h := f.Color.Width(), f.Color.Height()
	for _, b := range []*framebuf.Buffer{f.Depth, f.Normal, f.Albedo} {
		if b.Width() != w || b.Height() != h {
			return fmt.Errorf("%w: gi frame buffers differ in size", framebuf.ErrSizeMismatch)
		}
	}
	return nil
}

// Dependencies are the collaborators a Pipeline needs. All are required.
type Dependencies struct {
	Pool          *framebuf.Pool
	Context       *device.Context
	Light         Light
	Ambient       AmbientSettings
	CaptureCamera CaptureCamera
	ViewCamera    ViewCamera
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Pool == nil {
		missing = append(missing, "pool")
	}
	if d.Context == nil {
		missing = append(missing, "context")
	}
	if d.Light == nil {
		missing = append(missing, "light")
	}
	if d.Ambient == nil {
		missing = append(missing, "ambient settings")
	}
	if d.CaptureCamera == nil {
		missing = append(missing, "capture camera")
	}
	if d.ViewCamera == nil {
		missing = append(missing, "view camera")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: gi pipeline is missing %v", screenfx.ErrConfig, missing)
	}
	return nil
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMode sets the initial splatting mode. The default is Compute.
func WithMode(m SplattingMode) Option {
	return func(p *Pipeline) { p.mode = m }
}

// WithCaptureVariant selects FirstBounce (the default) or SecondBounce
// capture. SecondBounce records normals, which weight each VPL by the
// cosine at its own surface.
func WithCaptureVariant(v Variant) Option {
	return func(p *Pipeline) { p.variant = v }
}

// WithNormalCapture renders receiver normals every frame with cam at
// width by height instead of using the frame's normal buffer.
func WithNormalCapture(cam CaptureCamera, width, height int) Option {
	return func(p *Pipeline) {
		p.normalCam = cam
		p.normalW, p.normalH = width, height
	}
}

// Pipeline adds one bounce of VPL indirect light to a frame.
//
// Lifecycle: New, Initialize, Render per frame, Close. A Pipeline is used
// from one goroutine.
type Pipeline struct {
	deps    Dependencies
	params  Parameters
	mode    SplattingMode
	variant Variant

	normalCam        CaptureCamera
	normalW, normalH int

	capture       *Capture
	normalCapture *Capture
	generator     *Generator

	initialized bool
	closed      bool
}

// New validates deps and params and builds the capture and generator. It
// fails with a configuration error before anything runs.
func New(deps Dependencies, params Parameters, opts ...Option) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{deps: deps, params: params, mode: Compute, variant: FirstBounce}
	for _, opt := range opts {
		opt(p)
	}
	if !p.mode.IsValid() {
		return nil, fmt.Errorf("%w: gi %s", screenfx.ErrConfig, p.mode)
	}
	if p.variant == PositionWriting {
		return nil, fmt.Errorf("%w: gi VPL capture cannot be %s", screenfx.ErrConfig, p.variant)
	}

	var err error
	p.capture, err = NewCapture(deps.Pool, deps.CaptureCamera, deps.Light, deps.Ambient, CaptureConfig{
		Variant:             p.variant,
		RenderSize:          params.RenderSize,
		WorldVolumeBoundary: params.WorldVolumeBoundary,
	})
	if err != nil {
		return nil, err
	}
	if p.normalCam != nil {
		p.normalCapture, err = NewCapture(deps.Pool, p.normalCam, deps.Light, deps.Ambient, CaptureConfig{
			Variant:      PositionWriting,
			ScreenWidth:  p.normalW,
			ScreenHeight: p.normalH,
		})
		if err != nil {
			return nil, err
		}
	}
	p.generator, err = NewGenerator(deps.Context, params.RenderSize, params.WorldVolumeBoundary)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Initialize sets the scene ambient color to AmbientLightColor and
// initializes the captures.
func (p *Pipeline) Initialize() error {
	if p.closed {
		return ErrClosed
	}
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.deps.Ambient.SetColor(p.params.AmbientLightColor)
	if err := p.capture.Initialize(); err != nil {
		return err
	}
	if p.normalCapture != nil {
		if err := p.normalCapture.Initialize(); err != nil {
			return errors.Join(err, p.capture.release())
		}
	}
	p.initialized = true
	screenfx.Logger().Info("gi: pipeline initialized", "render_size", p.params.RenderSize,
		"mode", p.mode, "variant", p.variant)
	return nil
}

// Mode returns the splatting mode.
func (p *Pipeline) Mode() SplattingMode { return p.mode }

// SetMode switches the splatting mode from the next frame on.
func (p *Pipeline) SetMode(m SplattingMode) error {
	if !m.IsValid() {
		return fmt.Errorf("%w: gi %s", screenfx.ErrConfig, m)
	}
	p.mode = m
	return nil
}

// Parameters returns the pipeline parameters.
func (p *Pipeline) Parameters() Parameters { return p.params }

// Capture returns the light-space capture.
func (p *Pipeline) Capture() *Capture { return p.capture }

// Generator returns the VPL generator.
func (p *Pipeline) Generator() *Generator { return p.generator }

// Close releases captures and kernels. Close is idempotent.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.generator.Destroy()
	err := p.capture.Close()
	if p.normalCapture != nil {
		err = errors.Join(err, p.normalCapture.Close())
	}
	return err
}

// Render returns frame.Color with indirect light added, in a new unpooled
// buffer.
func (p *Pipeline) Render(frame Frame) (*framebuf.Buffer, error) {
	if err := frame.validate(); err != nil {
		return nil, err
	}
	dst, err := framebuf.New(frame.Color.Width(), frame.Color.Height(), frame.Color.Format())
	if err != nil {
		return nil, err
	}
	if err := p.RenderTo(dst, frame); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderTo shades frame into dst: recapture, invert the view camera
// matrices, generate VPLs with the current mode, then composite.
func (p *Pipeline) RenderTo(dst *framebuf.Buffer, frame Frame) (err error) {
	if p.closed {
		return ErrClosed
	}
	if !p.initialized {
		return ErrNotInitialized
	}
	if err := frame.validate(); err != nil {
		return err
	}
	w, h := frame.Color.Width(), frame.Color.Height()
	if dst == nil || dst.Width() != w || dst.Height() != h || dst == frame.Color {
		return fmt.Errorf("%w: gi destination must be a separate %dx%d buffer", framebuf.ErrSizeMismatch, w, h)
	}

	// 1. Capture
	if err := p.capture.RenderTextures(); err != nil {
		return err
	}
	if p.normalCapture != nil {
		if err := p.normalCapture.RenderTextures(); err != nil {
			return err
		}
	}

	// 2. View camera inverses
	cam := p.deps.ViewCamera
	proj := p.deps.Context.DepthRange().Adjust(cam.Projection())
	invProj, ok := projection.Inverse(proj)
	if !ok {
		return fmt.Errorf("%w: gi view projection is singular", screenfx.ErrConfig)
	}
	toWorld := cam.CameraToWorld()

	// 3. VPLs
	set, err := p.generator.Generate(p.mode, p.capture)
	if err != nil {
		return err
	}

	// 4. Composite
	scope := p.deps.Pool.Scope()
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	indirect, err := scope.Acquire(w, h, framebuf.FormatRGBA32Float)
	if err != nil {
		return err
	}
	s := &shader{
		frame:   frame,
		set:     set,
		params:  p.params,
		invProj: invProj,
		toWorld: toWorld,
		width:   w,
		height:  h,
	}
	if p.normalCapture != nil {
		s.normals = p.normalCapture.Normal()
	}
	p.deps.Context.Rows(h, func(y int) {
		for x := range w {
			indirect.Set(x, y, s.indirect(x, y))
		}
	})
	ambient := projection.Scale(p.params.AmbientLightColor, p.params.AmbientMultiplyFactor)
	p.deps.Context.Rows(h, func(y int) {
		for x := range w {
			src := frame.Color.At(x, y)
			ind := indirect.At(x, y)
			if ind[3] == 0 {
				dst.Set(x, y, src)
				continue
			}
			a := frame.Albedo.At(x, y)
			var out f32.Vec4
			for c := range 3 {
				out[c] = src[c] + a[c]*(ambient[c]+ind[c])
			}
			out[3] = src[3]
			dst.Set(x, y, out)
		}
	})
	return nil
}

// shader evaluates the VPL sum for one receiver pixel.
type shader struct {
	frame   Frame
	set     VPLSet
	params  Parameters
	invProj f32.Mat4
	toWorld f32.Mat4
	normals *framebuf.Buffer
	width   int
	height  int
}

// receiver returns the world position and normal at pixel (x, y), or false
// on background.
func (s *shader) receiver(x, y int) (pos, n f32.Vec3, ok bool) {
	d := s.frame.Depth.Value(x, y)
	if projection.IsBackground(d) {
		return pos, n, false
	}
	ndcX := (float32(x)+0.5)/float32(s.width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(s.height)*2
	v := projection.Transform(s.invProj, f32.Vec4{ndcX, ndcY, d, 1})
	if v[3] == 0 {
		return pos, n, false
	}
	view := f32.Vec3{v[0] / v[3], v[1] / v[3], v[2] / v[3]}
	pos = projection.TransformPoint(s.toWorld, view)

	if s.normals != nil {
		e := s.normals.SampleNearest((float32(x)+0.5)/float32(s.width), (float32(y)+0.5)/float32(s.height))
		if e[3] == 0 {
			return pos, n, false
		}
		return pos, projection.Normalize(projection.DecodeNormal(f32.Vec3{e[0], e[1], e[2]})), true
	}
	vn := s.frame.Normal.At(x, y)
	if vn[3] == 0 {
		return pos, n, false
	}
	n = projection.Normalize(projection.TransformDir(s.toWorld, f32.Vec3{vn[0], vn[1], vn[2]}))
	return pos, n, true
}

// indirect returns the bounced light at pixel (x, y) in rgb, with w = 1 on
// geometry and 0 on background:
//
//	strength/N * sum(color * max(0, n.l) * cosVPL / (1 + attenuation*d^2))
//
// VPLs closer than DistanceThreshold are skipped. cosVPL is 1 unless the
// capture recorded normals.
func (s *shader) indirect(x, y int) f32.Vec4 {
	pos, n, ok := s.receiver(x, y)
	if !ok {
		return f32.Vec4{}
	}
	var sum f32.Vec3
	count := s.set.Len()
	for i := range count {
		vpl := s.set.At(i)
		if vpl.Color == [3]float32{} {
			continue
		}
		l := projection.Sub(f32.Vec3(vpl.Position), pos)
		dist := projection.Length(l)
		if dist < s.params.DistanceThreshold {
			continue
		}
		l = projection.Scale(l, 1/dist)
		weight := math32.Max(0, projection.Dot(n, l))
		if weight == 0 {
			continue
		}
		if vn, ok := s.set.Normal(i); ok {
			weight *= math32.Max(0, -projection.Dot(vn, l))
		}
		weight /= 1 + s.params.AttenuationFactor*dist*dist
		sum = projection.Add(sum, projection.Scale(f32.Vec3(vpl.Color), weight))
	}
	k := s.params.FirstBounceStrength / float32(count)
	return f32.Vec4{sum[0] * k, sum[1] * k, sum[2] * k, 1}
}

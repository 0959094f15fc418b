package ssr

import (
	"errors"
	"fmt"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
)

// Pipeline renders screen-space reflections for one frame at a time.
//
// Thread safety: a Pipeline is safe for concurrent Render calls as long as
// each call uses its own frame and destination; the shared pool serializes
// buffer acquisition.
type Pipeline struct {
	pool   *framebuf.Pool
	ctx    *device.Context
	stages *Stages
}

// New creates a reflection pipeline drawing intermediate buffers from pool
// and running its kernels on ctx.
func New(pool *framebuf.Pool, ctx *device.Context) (*Pipeline, error) {
	if pool == nil || ctx == nil {
		return nil, fmt.Errorf("%w: ssr pipeline needs a pool and a context", screenfx.ErrConfig)
	}
	stages, err := NewStages(ctx)
	if err != nil {
		return nil, err
	}
	return &Pipeline{pool: pool, ctx: ctx, stages: stages}, nil
}

// Stages returns the pipeline's filter and blend stages.
func (p *Pipeline) Stages() *Stages { return p.stages }

// Close releases the pipeline's kernels.
func (p *Pipeline) Close() {
	p.stages.Destroy()
}

// Render returns frame.Color with reflections applied, in a new unpooled
// buffer of the same size and format.
func (p *Pipeline) Render(frame Frame, cam Camera, params Parameters, model QualityModel) (*framebuf.Buffer, error) {
	if err := frame.validate(); err != nil {
		return nil, err
	}
	dst, err := framebuf.New(frame.Color.Width(), frame.Color.Height(), frame.Color.Format())
	if err != nil {
		return nil, err
	}
	if err := p.RenderTo(dst, frame, cam, params, model); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderTo writes frame.Color with reflections applied into dst. dst must
// have the size of the frame and must not be one of its buffers.
//
// Every buffer acquired from the pool is released before RenderTo returns.
func (p *Pipeline) RenderTo(dst *framebuf.Buffer, frame Frame, cam Camera, params Parameters, model QualityModel) (err error) {
	if err := frame.validate(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if !model.IsValid() {
		return fmt.Errorf("%w: ssr %s", screenfx.ErrConfig, model)
	}
	if cam == nil {
		return fmt.Errorf("%w: ssr camera is nil", screenfx.ErrConfig)
	}
	if dst == nil || dst == frame.Color || dst == frame.Depth || dst == frame.Normal {
		return fmt.Errorf("%w: ssr destination must be a separate buffer", screenfx.ErrConfig)
	}
	if dst.Width() != frame.Color.Width() || dst.Height() != frame.Color.Height() {
		return fmt.Errorf("%w: ssr destination %dx%d, frame %dx%d", framebuf.ErrSizeMismatch,
			dst.Width(), dst.Height(), frame.Color.Width(), frame.Color.Height())
	}

	view, err := newFrameView(frame, cam, p.ctx.HalfDepthRange())
	if err != nil {
		return err
	}

	scope := p.pool.Scope()
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	switch model {
	case Prototype:
		err = p.renderPrototype(scope, view, params, dst)
	default:
		err = p.renderNormal(scope, view, params, dst)
	}
	if err != nil {
		screenfx.Logger().Warn("ssr: frame failed", "model", model, "err", err)
	}
	return err
}

func (p *Pipeline) acquire(scope *framebuf.Scope, v *frameView, downsample int, format framebuf.Format) (*framebuf.Buffer, error) {
	w, h := v.width/downsample, v.height/downsample
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: ssr downsample %d leaves no pixels of %dx%d",
			screenfx.ErrConfig, downsample, v.width, v.height)
	}
	return scope.Acquire(w, h, format)
}

func (p *Pipeline) renderNormal(scope *framebuf.Scope, v *frameView, params Parameters, dst *framebuf.Buffer) error {
	refl, err := p.acquire(scope, v, params.Downsample, framebuf.FormatRGBA8)
	if err != nil {
		return err
	}
	blurred, err := scope.AcquireLike(refl)
	if err != nil {
		return err
	}

	p.normalPass(v, params, refl)
	if err := p.stages.Blur(refl, blurred, params.BlurIterations, params.BlurStep); err != nil {
		return err
	}
	return p.stages.Composite(v.frame.Color, refl, nil, dst, params, Normal)
}

func (p *Pipeline) renderPrototype(scope *framebuf.Scope, v *frameView, params Parameters, dst *framebuf.Buffer) error {
	length, err := p.acquire(scope, v, params.LengthDownsample, framebuf.FormatR32Float)
	if err != nil {
		return err
	}
	tempLength, err := scope.AcquireLike(length)
	if err != nil {
		return err
	}
	refl, err := p.acquire(scope, v, params.ReflectionsDownsample, framebuf.FormatRGBA8)
	if err != nil {
		return err
	}
	filtered, err := scope.AcquireLike(refl)
	if err != nil {
		return err
	}
	temp, err := scope.AcquireLike(refl)
	if err != nil {
		return err
	}

	p.lengthPass(v, params, length)
	if err := p.stages.BlurGuarded(length, tempLength, params.LengthBlurIterations,
		params.LengthBlurStep, params.LengthBlurThreshold); err != nil {
		return err
	}
	p.conePass(v, params, length, refl)
	if err := p.stages.EdgeFilter(refl, filtered, params.FilterStep, params.FilterThreshold); err != nil {
		return err
	}
	if err := p.stages.Blur(filtered, temp, params.BlurIterations, params.BlurStep); err != nil {
		return err
	}
	return p.stages.Composite(v.frame.Color, filtered, length, dst, params, Prototype)
}

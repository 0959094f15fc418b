package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/config"
	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/gi"
	"github.com/gogpu/screenfx/host"
	"github.com/gogpu/screenfx/ssr"
	"github.com/gogpu/screenfx/world"
)

// captureDumpSize is the side of upscaled light-space capture dumps.
const captureDumpSize = 256

// demo renders a floor, a bobbing sphere, a second sphere and a box under a
// sweeping spot light.
type demo struct {
	cfg         config.Config
	toggleEvery int

	width, height int

	ctx      *device.Context
	pool     *framebuf.Pool
	scene    *world.Scene
	renderer *world.Renderer
	viewCam  *world.Camera
	lightCam *world.Camera

	gbuf   *world.GBuffer
	lit    *framebuf.Buffer
	out    *framebuf.Buffer
	giPipe *gi.Pipeline
	toggle *host.ModeToggle

	ssrPipe   *ssr.Pipeline
	ssrParams ssr.Parameters
	ssrModel  ssr.QualityModel

	animators []world.Animator
}

func newDemo(cfg config.Config, toggleEvery int) (*demo, error) {
	backend, err := cfg.Demo.ResolveBackend()
	if err != nil {
		return nil, err
	}
	opts := []device.Option{device.WithBackend(backend)}
	if cfg.Demo.Workers > 0 {
		opts = append(opts, device.WithWorkers(cfg.Demo.Workers))
	}
	w, h := cfg.FrameSize()
	d := &demo{
		cfg:         cfg,
		toggleEvery: toggleEvery,
		width:       w,
		height:      h,
		ctx:         device.NewContext(opts...),
		pool:        framebuf.NewPool(),
	}

	lightT := &world.Transform{Position: f32.Vec3{0, 9, 6}, Pitch: -60}
	light := world.NewSpotLight(
		world.WithLightTransform(lightT),
		world.WithRange(30),
		world.WithSpotAngle(100),
		world.WithLightIntensity(1.6),
	)
	d.scene = world.NewScene(light, world.NewAmbient(f32.Vec3{0.5, 0.5, 0.5}, 0.2))
	bob := &world.Transform{Position: f32.Vec3{-2, 5, 0}}
	d.scene.Add(world.Plane{Normal: f32.Vec3{0, 1, 0}}, world.Material{Albedo: f32.Vec3{0.7, 0.7, 0.7}})
	d.scene.Add(world.Attached{Shape: world.Sphere{Radius: 1}, Transform: bob}, world.Material{Albedo: f32.Vec3{0.9, 0.15, 0.1}})
	d.scene.Add(world.Sphere{Center: f32.Vec3{2, 1.2, -1}, Radius: 1.2}, world.Material{Albedo: f32.Vec3{0.1, 0.8, 0.2}})
	d.scene.Add(world.Box{Min: f32.Vec3{-0.5, 0, -4}, Max: f32.Vec3{1.5, 3, -2}}, world.Material{Albedo: f32.Vec3{0.15, 0.2, 0.9}})
	d.animators = []world.Animator{world.NewAngleChanger(lightT), world.NewOscillator(bob, 1)}

	d.renderer = world.NewRenderer(d.scene, d.ctx)
	d.viewCam = world.NewCamera(&world.Transform{Position: f32.Vec3{0, 4, 12}, Pitch: -15},
		world.WithAspect(float32(w)/float32(h)), world.WithClipPlanes(0.3, 100))
	d.lightCam = world.NewCamera(lightT, world.WithAspect(1))
	return d, nil
}

func (d *demo) Initialize() (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, d.Shutdown())
		}
	}()
	if d.gbuf, err = world.NewGBuffer(d.width, d.height); err != nil {
		return err
	}
	if d.lit, err = framebuf.New(d.width, d.height, framebuf.FormatRGBA32Float); err != nil {
		return err
	}
	if d.out, err = framebuf.New(d.width, d.height, framebuf.FormatRGBA32Float); err != nil {
		return err
	}

	if d.cfg.GI.Enabled {
		params, opts, err := d.cfg.GI.Resolve()
		if err != nil {
			return err
		}
		d.giPipe, err = gi.New(gi.Dependencies{
			Pool:          d.pool,
			Context:       d.ctx,
			Light:         d.scene.Light,
			Ambient:       d.scene.Ambient,
			CaptureCamera: d.renderer.View(d.lightCam),
			ViewCamera:    d.viewCam,
		}, params, opts...)
		if err != nil {
			return err
		}
		if err := d.giPipe.Initialize(); err != nil {
			return err
		}
		d.toggle = host.NewModeToggle(d.giPipe)
	}
	if d.cfg.SSR.Enabled {
		if d.ssrParams, d.ssrModel, err = d.cfg.SSR.Resolve(); err != nil {
			return err
		}
		if d.ssrPipe, err = ssr.New(d.pool, d.ctx); err != nil {
			return err
		}
	}
	if out := d.cfg.Demo.Output; out != "" {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
	}
	return nil
}

func (d *demo) RenderFrame(n int, _ time.Duration) error {
	if d.toggle != nil && d.toggleEvery > 0 && n > 0 && n%d.toggleEvery == 0 {
		if err := d.toggle.Toggle(); err != nil {
			return err
		}
		screenfx.Logger().Info(d.toggle.Label())
	}
	if err := d.renderer.RenderGBuffer(d.viewCam, d.gbuf); err != nil {
		return err
	}

	color := d.gbuf.Color
	if d.giPipe != nil {
		frame := gi.Frame{Color: color, Depth: d.gbuf.Depth, Normal: d.gbuf.Normal, Albedo: d.gbuf.Albedo}
		if err := d.giPipe.RenderTo(d.lit, frame); err != nil {
			return err
		}
		color = d.lit
	}
	if d.ssrPipe != nil {
		frame := ssr.Frame{Color: color, Depth: d.gbuf.Depth, Normal: d.gbuf.Normal}
		if err := d.ssrPipe.RenderTo(d.out, frame, d.viewCam, d.ssrParams, d.ssrModel); err != nil {
			return err
		}
		color = d.out
	}

	every := d.cfg.Demo.DumpEvery
	if d.cfg.Demo.Output == "" || every == 0 || n%every != 0 {
		return nil
	}
	if err := d.dump(fmt.Sprintf("frame_%04d.webp", n), color, 0); err != nil {
		return err
	}
	if d.giPipe != nil {
		return d.dump(fmt.Sprintf("capture_%04d.webp", n), d.giPipe.Capture().Direct(), captureDumpSize)
	}
	return nil
}

// dump writes b as a WebP image, upscaled to size x size when size > 0.
func (d *demo) dump(name string, b *framebuf.Buffer, size int) (err error) {
	path := filepath.Join(d.cfg.Demo.Output, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if size > 0 {
		err = framebuf.EncodeWebPScaled(f, b, size, size)
	} else {
		err = framebuf.EncodeWebP(f, b)
	}
	if err == nil {
		screenfx.Logger().Debug("demo: wrote", "path", path)
	}
	return err
}

func (d *demo) Shutdown() error {
	var err error
	if d.giPipe != nil {
		err = d.giPipe.Close()
		d.giPipe = nil
	}
	if d.ssrPipe != nil {
		d.ssrPipe.Close()
		d.ssrPipe = nil
	}
	if n := d.pool.Outstanding(); n != 0 {
		err = errors.Join(err, fmt.Errorf("%w: %d buffers still outstanding", screenfx.ErrResource, n))
	}
	d.ctx.Close()
	return err
}

package world

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/device"
	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/projection"
)

// ErrNilTarget is returned when a render target is missing.
var ErrNilTarget = screenfx.NewError("world: nil render target", screenfx.ErrConfig)

// GBuffer holds the per-pixel outputs of a camera render.
type GBuffer struct {
	// Color is the lit scene color (RGBA32Float).
	Color *framebuf.Buffer
	// Depth is device depth in the context's convention; 1 is background (R32Float).
	Depth *framebuf.Buffer
	// Normal is the view-space normal in xyz, w = 1 on geometry (RGBA32Float).
	Normal *framebuf.Buffer
	// Albedo is the surface reflectance (RGBA32Float).
	Albedo *framebuf.Buffer
}

// NewGBuffer allocates an unpooled G-buffer.
func NewGBuffer(width, height int) (*GBuffer, error) {
	g := &GBuffer{}
	var err error
	if g.Color, err = framebuf.New(width, height, framebuf.FormatRGBA32Float); err != nil {
		return nil, err
	}
	if g.Depth, err = framebuf.New(width, height, framebuf.FormatR32Float); err != nil {
		return nil, err
	}
	if g.Normal, err = framebuf.New(width, height, framebuf.FormatRGBA32Float); err != nil {
		return nil, err
	}
	if g.Albedo, err = framebuf.New(width, height, framebuf.FormatRGBA32Float); err != nil {
		return nil, err
	}
	return g, nil
}

// Renderer ray casts a Scene, one primary ray per pixel center, with rows
// spread over the context's worker pool.
type Renderer struct {
	scene *Scene
	ctx   *device.Context
}

// NewRenderer creates a renderer for scene.
func NewRenderer(scene *Scene, ctx *device.Context) *Renderer {
	return &Renderer{scene: scene, ctx: ctx}
}

// Scene returns the rendered scene.
func (r *Renderer) Scene() *Scene { return r.scene }

// primaryRay returns the world-space ray through the center of pixel (x, y)
// of a width by height target; row 0 is the top.
func primaryRay(cam *Camera, toWorld f32.Mat4, x, y, width, height int) Ray {
	tanHalf := math32.Tan(cam.FieldOfView() * math32.Pi / 360)
	ndcX := (float32(x)+0.5)/float32(width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(height)*2
	dirView := f32.Vec3{ndcX * tanHalf * cam.Aspect(), ndcY * tanHalf, -1}
	return Ray{
		Origin: projection.TransformPoint(toWorld, f32.Vec3{}),
		Dir:    projection.Normalize(projection.TransformDir(toWorld, dirView)),
	}
}

// trace walks every pixel of a width by height target and calls fn with the
// hit (if any) and the view-space eye depth of the hit.
func (r *Renderer) trace(cam *Camera, width, height int, fn func(x, y int, h Hit, ok bool, eyeDepth float32)) {
	toWorld := cam.CameraToWorld()
	view := cam.WorldToCamera()
	forward := projection.Normalize(projection.TransformDir(toWorld, f32.Vec3{0, 0, -1}))
	far := cam.FarClip()
	r.ctx.Rows(height, func(y int) {
		for x := range width {
			ray := primaryRay(cam, toWorld, x, y, width, height)
			cosA := projection.Dot(ray.Dir, forward)
			h, ok := r.scene.Intersect(ray, cam.NearClip()/cosA, far/cosA)
			var eye float32
			if ok {
				eye = -projection.TransformPoint(view, h.Point)[2]
			}
			fn(x, y, h, ok, eye)
		}
	})
}

// Render writes the lit scene color into dst. Background pixels get the
// scene background with alpha 0.
func (r *Renderer) Render(cam *Camera, dst *framebuf.Buffer) error {
	if dst == nil {
		return ErrNilTarget
	}
	bg := r.scene.Background
	r.trace(cam, dst.Width(), dst.Height(), func(x, y int, h Hit, ok bool, _ float32) {
		if !ok {
			dst.Set(x, y, f32.Vec4{bg[0], bg[1], bg[2], 0})
			return
		}
		c := r.scene.Shade(h)
		dst.Set(x, y, f32.Vec4{c[0], c[1], c[2], 1})
	})
	return nil
}

// RenderPositions writes world positions encoded relative to a cube of
// half-extent boundary: pos/boundary*0.5 + 0.5. Background stays zero.
func (r *Renderer) RenderPositions(cam *Camera, dst *framebuf.Buffer, boundary float32) error {
	if dst == nil {
		return ErrNilTarget
	}
	if boundary <= 0 {
		return fmt.Errorf("%w: world volume boundary %v", screenfx.ErrConfig, boundary)
	}
	r.trace(cam, dst.Width(), dst.Height(), func(x, y int, h Hit, ok bool, _ float32) {
		if !ok {
			dst.Set(x, y, f32.Vec4{})
			return
		}
		e := projection.EncodePosition(h.Point, boundary)
		dst.Set(x, y, f32.Vec4{e[0], e[1], e[2], 1})
	})
	return nil
}

// RenderNormals writes world normals encoded as n*0.5 + 0.5. Background
// stays zero.
func (r *Renderer) RenderNormals(cam *Camera, dst *framebuf.Buffer) error {
	if dst == nil {
		return ErrNilTarget
	}
	r.trace(cam, dst.Width(), dst.Height(), func(x, y int, h Hit, ok bool, _ float32) {
		if !ok {
			dst.Set(x, y, f32.Vec4{})
			return
		}
		e := projection.EncodeNormal(h.Normal)
		dst.Set(x, y, f32.Vec4{e[0], e[1], e[2], 1})
	})
	return nil
}

// RenderGBuffer fills every buffer of g in one pass. All buffers must share
// the size of g.Color.
func (r *Renderer) RenderGBuffer(cam *Camera, g *GBuffer) error {
	if g == nil || g.Color == nil || g.Depth == nil || g.Normal == nil || g.Albedo == nil {
		return ErrNilTarget
	}
	w, h := g.Color.Width(), g.Color.Height()
	for _, b := range []*framebuf.Buffer{g.Depth, g.Normal, g.Albedo} {
		if b.Width() != w || b.Height() != h {
			return fmt.Errorf("%w: G-buffer sizes differ", framebuf.ErrSizeMismatch)
		}
	}

	proj := r.ctx.DepthRange().Adjust(cam.Projection())
	view := cam.WorldToCamera()
	bg := r.scene.Background
	r.trace(cam, w, h, func(x, y int, hit Hit, ok bool, eye float32) {
		if !ok {
			g.Color.Set(x, y, f32.Vec4{bg[0], bg[1], bg[2], 0})
			g.Depth.SetValue(x, y, 1)
			g.Normal.Set(x, y, f32.Vec4{})
			g.Albedo.Set(x, y, f32.Vec4{})
			return
		}
		c := r.scene.Shade(hit)
		n := projection.Normalize(projection.TransformDir(view, hit.Normal))
		a := hit.Material.Albedo
		g.Color.Set(x, y, f32.Vec4{c[0], c[1], c[2], 1})
		g.Depth.SetValue(x, y, projection.DeviceDepth(proj, eye))
		g.Normal.Set(x, y, f32.Vec4{n[0], n[1], n[2], 1})
		g.Albedo.Set(x, y, f32.Vec4{a[0], a[1], a[2], 1})
	})
	return nil
}

package ssr

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/screenfx/framebuf"
	"github.com/gogpu/screenfx/projection"
)

// depthTest classifies a view-space ray sample against the depth buffer.
type depthTest uint8

const (
	inFront depthTest = iota
	hitSurface
	behind
	offScreen
)

// test compares sample q against the depth buffer. px, py are the texel the
// sample lands on.
func (v *frameView) test(q f32.Vec3, bias float32) (res depthTest, px, py int) {
	tx, ty, ok := v.project(q)
	if !ok {
		return offScreen, 0, 0
	}
	px, py = int(tx), int(ty)
	scene, hit := v.eyeDepth(px, py)
	if !hit {
		return inFront, px, py
	}
	diff := -q[2] - scene
	switch {
	case diff <= 0:
		return inFront, px, py
	case diff < bias:
		return hitSurface, px, py
	default:
		return behind, px, py
	}
}

// normalPass marches one ray per pixel of dst in fixed steps of
// RayTraceStepNormal pixels. A hit writes the hit color with alpha 1;
// everything else writes zero.
func (p *Pipeline) normalPass(v *frameView, params Parameters, dst *framebuf.Buffer) {
	w, h := dst.Width(), dst.Height()
	p.ctx.Rows(h, func(y int) {
		for x := range w {
			dst.Set(x, y, v.marchLinear(x, y, w, h, params))
		}
	})
}

func (v *frameView) marchLinear(x, y, w, h int, params Parameters) f32.Vec4 {
	sx, sy := v.sourcePixel(x, y, w, h)
	pos, n, ok := v.surface(sx, sy, params.DepthCutOff)
	if !ok {
		return f32.Vec4{}
	}
	dir := reflection(pos, n)
	step := params.RayTraceStepNormal * v.pixelSize(-pos[2])
	for i := 1; i <= params.MaxIterationsNormal; i++ {
		q := projection.Add(pos, projection.Scale(dir, step*float32(i)))
		res, px, py := v.test(q, params.ZBiasNormal)
		if res == offScreen {
			break
		}
		if res == hitSurface && (px != sx || py != sy) {
			c := v.frame.Color.At(px, py)
			return f32.Vec4{c[0], c[1], c[2], 1}
		}
	}
	return f32.Vec4{}
}

// maxTravel is the distance a prototype ray may cover; hit lengths are
// normalized by it.
func (v *frameView) maxTravel(eye float32, params Parameters) float32 {
	return params.RayTraceStep * v.pixelSize(eye) * float32(params.MaxIterations)
}

// lengthPass writes the normalized hit length of every pixel of dst, in
// (0, 1] on a hit and 0 on a miss.
func (p *Pipeline) lengthPass(v *frameView, params Parameters, dst *framebuf.Buffer) {
	w, h := dst.Width(), dst.Height()
	p.ctx.Rows(h, func(y int) {
		for x := range w {
			dst.SetValue(x, y, v.marchAdaptive(x, y, w, h, params))
		}
	})
}

// marchAdaptive marches with a step that shrinks by the decrease factor
// whenever the ray overshoots a surface and grows by the increase factor
// otherwise.
func (v *frameView) marchAdaptive(x, y, w, h int, params Parameters) float32 {
	sx, sy := v.sourcePixel(x, y, w, h)
	pos, n, ok := v.surface(sx, sy, params.DepthCutOff)
	if !ok {
		return 0
	}
	dir := reflection(pos, n)
	eye := -pos[2]
	step := params.RayTraceStep * v.pixelSize(eye)
	minStep := step / 64
	limit := v.maxTravel(eye, params)

	var travel float32
	for range params.MaxIterations {
		next := travel + step
		q := projection.Add(pos, projection.Scale(dir, next))
		res, px, py := v.test(q, params.ZBias)
		switch res {
		case offScreen:
			return 0
		case hitSurface:
			if px == sx && py == sy {
				travel = next
				continue
			}
			return math32.Max(math32.Min(next/limit, 1), 1e-6)
		case behind:
			if step > minStep {
				step *= params.MultiplicativeDecreaseFactor
				continue
			}
			// Passed behind a thin object.
			travel = next
		default:
			travel = next
			step *= params.MultiplicativeIncreaseFactor
		}
		if travel >= limit {
			return 0
		}
	}
	return 0
}

// coneTaps are unit-disk sample positions per tier: the center, a ring of
// six, and an inner ring of six offset by 30 degrees.
var coneTaps = func() [13][2]float32 {
	var taps [13][2]float32
	for k := range 6 {
		s, c := math32.Sincos(float32(k) * math32.Pi / 3)
		taps[1+k] = [2]float32{c, s}
		s, c = math32.Sincos(float32(k)*math32.Pi/3 + math32.Pi/6)
		taps[7+k] = [2]float32{0.5 * c, 0.5 * s}
	}
	return taps
}()

// conePass gathers reflection color for every pixel of dst from the length
// buffer: rays shorter than RayLengthCutOff are misses, others sample a cone
// around the hit with params.Samples taps. Alpha is the fraction of taps
// that landed on screen.
func (p *Pipeline) conePass(v *frameView, params Parameters, length, dst *framebuf.Buffer) {
	w, h := dst.Width(), dst.Height()
	p.ctx.Rows(h, func(y int) {
		for x := range w {
			dst.Set(x, y, v.coneSample(x, y, w, h, params, length))
		}
	})
}

func (v *frameView) coneSample(x, y, w, h int, params Parameters, length *framebuf.Buffer) f32.Vec4 {
	u := (float32(x) + 0.5) / float32(w)
	t := (float32(y) + 0.5) / float32(h)
	l := length.SampleNearest(u, t)[0]
	if l < params.RayLengthCutOff || l <= 0 {
		return f32.Vec4{}
	}
	sx, sy := v.sourcePixel(x, y, w, h)
	pos, n, ok := v.surface(sx, sy, params.DepthCutOff)
	if !ok {
		return f32.Vec4{}
	}
	dir := reflection(pos, n)
	travel := l * v.maxTravel(-pos[2], params)
	hit := projection.Add(pos, projection.Scale(dir, travel))
	radius := travel * math32.Tan(params.ConeAngle*math32.Pi/360)

	// Ring taps sit on the cone surface, pulled toward the apex along the
	// axis by ConeLengthOffset of the travel.
	up := f32.Vec3{0, 1, 0}
	if math32.Abs(dir[1]) > 0.99 {
		up = f32.Vec3{1, 0, 0}
	}
	tangent := projection.Normalize(projection.Cross(dir, up))
	bitangent := projection.Cross(dir, tangent)

	var sum f32.Vec3
	valid := 0
	for i := range int(params.Samples) {
		tap := coneTaps[i]
		ring := math32.Sqrt(tap[0]*tap[0] + tap[1]*tap[1])
		q := projection.Add(hit, projection.Scale(dir, -params.ConeLengthOffset*travel*ring))
		q = projection.Add(q, projection.Scale(tangent, tap[0]*radius))
		q = projection.Add(q, projection.Scale(bitangent, tap[1]*radius))
		tx, ty, ok := v.project(q)
		if !ok {
			continue
		}
		c := v.frame.Color.SampleTexel(tx, ty)
		sum = projection.Add(sum, f32.Vec3{c[0], c[1], c[2]})
		valid++
	}
	if valid == 0 {
		return f32.Vec4{}
	}
	inv := 1 / float32(valid)
	return f32.Vec4{sum[0] * inv, sum[1] * inv, sum[2] * inv, float32(valid) / float32(params.Samples)}
}

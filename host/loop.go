package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/world"
)

// Renderer is the per-frame work a Loop drives.
type Renderer interface {
	// Initialize runs once before the first frame.
	Initialize() error
	// RenderFrame renders frame n; dt is the time since the previous frame.
	RenderFrame(n int, dt time.Duration) error
	// Shutdown runs once after the last frame, also when a frame failed.
	Shutdown() error
}

// Loop calls a Renderer once per frame and advances animators between
// frames. A failed frame ends the loop.
type Loop struct {
	renderer  Renderer
	animators []world.Animator
	fps       *FPSCounter
	display   *Display
	step      time.Duration
	now       func() time.Time
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithAnimators registers animators updated before each frame.
func WithAnimators(a ...world.Animator) LoopOption {
	return func(l *Loop) {
		l.animators = append(l.animators, a...)
	}
}

// WithFixedStep advances animators by step per frame instead of by wall
// time. Offline rendering uses this to get the same frames on every run.
func WithFixedStep(step time.Duration) LoopOption {
	return func(l *Loop) {
		l.step = step
	}
}

// WithFPSCounter ticks c once per frame.
func WithFPSCounter(c *FPSCounter) LoopOption {
	return func(l *Loop) {
		l.fps = c
	}
}

// WithDisplay attaches the display the FPS counter requests a mode on.
func WithDisplay(d *Display) LoopOption {
	return func(l *Loop) {
		l.display = d
	}
}

// NewLoop returns a loop around r.
func NewLoop(r Renderer, opts ...LoopOption) *Loop {
	l := &Loop{renderer: r, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.display == nil {
		l.display = NewDisplay(DefaultDisplayMode)
	}
	return l
}

// Display returns the loop's display.
func (l *Loop) Display() *Display { return l.display }

// Run initializes the renderer, renders frames until ctx is done or, when
// frames > 0, that many frames were rendered, then shuts it down. It
// returns the number of frames rendered.
func (l *Loop) Run(ctx context.Context, frames int) (n int, err error) {
	log := screenfx.Logger()
	if err := l.renderer.Initialize(); err != nil {
		return 0, fmt.Errorf("host: initialize: %w", err)
	}
	defer func() {
		if serr := l.renderer.Shutdown(); serr != nil {
			err = errors.Join(err, fmt.Errorf("host: shutdown: %w", serr))
		}
		log.Info("host: stopped", "frames", n)
	}()
	if l.fps != nil {
		if err := l.fps.Start(l.display); err != nil {
			return 0, err
		}
	}
	log.Info("host: started", "display", l.display.Mode().String(), "frames", frames)

	last := l.now()
	for frames <= 0 || n < frames {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		dt := l.step
		if dt == 0 {
			now := l.now()
			dt, last = now.Sub(last), now
		}
		for _, a := range l.animators {
			a.Update(float32(dt.Seconds()))
		}
		if err := l.renderer.RenderFrame(n, dt); err != nil {
			return n, fmt.Errorf("host: frame %d: %w", n, err)
		}
		n++
		if l.fps != nil && l.fps.Tick() {
			log.Debug("host: "+l.fps.Label(), "frames", l.fps.Frames())
		}
	}
	return n, nil
}

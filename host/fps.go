package host

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// fpsDisplayMode is requested when an FPS counter starts.
var fpsDisplayMode = DisplayMode{Width: 1280, Height: 720, Fullscreen: true}

// FPSCounter counts frames per wall-clock second. The label is refreshed
// once a second with the number of frames seen since the previous refresh.
type FPSCounter struct {
	now     func() time.Time
	printer *message.Printer

	next   time.Time
	frames int
	total  int
	fps    int
	label  string
}

// FPSOption configures an FPSCounter.
type FPSOption func(*FPSCounter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FPSOption {
	return func(c *FPSCounter) {
		c.now = now
	}
}

// WithLanguage formats the label for tag. The default is English.
func WithLanguage(tag language.Tag) FPSOption {
	return func(c *FPSCounter) {
		c.printer = message.NewPrinter(tag)
	}
}

// NewFPSCounter returns a counter that has not started.
func NewFPSCounter(opts ...FPSOption) *FPSCounter {
	c := &FPSCounter{now: time.Now, printer: message.NewPrinter(language.English)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start resets the counter and, when d is not nil, requests a 1280x720
// fullscreen display.
func (c *FPSCounter) Start(d *Display) error {
	c.frames, c.total, c.fps = 0, 0, 0
	c.label = c.format(0)
	c.next = c.now().Add(time.Second)
	if d != nil {
		return d.Request(fpsDisplayMode)
	}
	return nil
}

// Tick counts one frame and reports whether the label changed.
func (c *FPSCounter) Tick() bool {
	c.frames++
	c.total++
	now := c.now()
	if now.Before(c.next) {
		return false
	}
	c.fps = c.frames
	c.label = c.format(c.fps)
	c.frames = 0
	c.next = now.Add(time.Second)
	return true
}

func (c *FPSCounter) format(n int) string {
	return c.printer.Sprintf("FPS: %d", n)
}

// FPS returns the last measured rate.
func (c *FPSCounter) FPS() int { return c.fps }

// Frames returns the frames counted since Start.
func (c *FPSCounter) Frames() int { return c.total }

// Label returns the text shown to the user, "FPS: N".
func (c *FPSCounter) Label() string { return c.label }

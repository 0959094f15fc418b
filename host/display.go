package host

import (
	"fmt"

	"github.com/gogpu/screenfx"
)

// DisplayMode is an output resolution request.
type DisplayMode struct {
	Width      int
	Height     int
	Fullscreen bool
}

// DefaultDisplayMode is 1920x1080 windowed.
var DefaultDisplayMode = DisplayMode{Width: 1920, Height: 1080}

func (m DisplayMode) String() string {
	if m.Fullscreen {
		return fmt.Sprintf("%dx%d fullscreen", m.Width, m.Height)
	}
	return fmt.Sprintf("%dx%d windowed", m.Width, m.Height)
}

// Display records the last display mode requested. There is no window
// behind it; requests are logged and the mode is reported back.
type Display struct {
	mode DisplayMode
}

// NewDisplay returns a Display in mode m.
func NewDisplay(m DisplayMode) *Display {
	return &Display{mode: m}
}

// Request switches to m. Non-positive sizes are rejected.
func (d *Display) Request(m DisplayMode) error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: display mode %dx%d", screenfx.ErrConfig, m.Width, m.Height)
	}
	if m != d.mode {
		screenfx.Logger().Info("host: display mode", "from", d.mode.String(), "to", m.String())
	}
	d.mode = m
	return nil
}

// Mode returns the current display mode.
func (d *Display) Mode() DisplayMode { return d.mode }

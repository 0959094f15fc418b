package host

import (
	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/gi"
)

// ModeSwitcher is what a ModeToggle drives; *gi.Pipeline implements it.
type ModeSwitcher interface {
	Mode() gi.SplattingMode
	SetMode(gi.SplattingMode) error
}

// ModeToggle cycles the splatting mode COMPUTE -> CPU -> GPU -> COMPUTE and
// keeps a status label in sync.
type ModeToggle struct {
	target ModeSwitcher
	label  string
}

// NewModeToggle returns a toggle labelled with target's current mode.
func NewModeToggle(target ModeSwitcher) *ModeToggle {
	t := &ModeToggle{target: target}
	t.label = modeLabel(target.Mode())
	return t
}

// Toggle advances to the next mode.
func (t *ModeToggle) Toggle() error {
	next := t.target.Mode().Next()
	if err := t.target.SetMode(next); err != nil {
		return err
	}
	t.label = modeLabel(next)
	screenfx.Logger().Info("host: splatting mode", "mode", next)
	return nil
}

// Label returns "Current Splatting = MODE".
func (t *ModeToggle) Label() string { return t.label }

func modeLabel(m gi.SplattingMode) string {
	return "Current Splatting = " + m.String()
}

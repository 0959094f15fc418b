// Package config loads screenfx settings from TOML files.
//
// A Config starts from Default, which mirrors the values the effects ship
// with, and each file passed to Load overrides only the keys it sets:
//
//	[ssr]
//	model = "PROTOTYPE"
//	samples = "HIGH"
//	ray_trace_step = 8
//
//	[gi]
//	mode = "GPU"
//	render_size = 16
//
//	[display]
//	width = 1280
//	height = 720
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/gi"
	"github.com/gogpu/screenfx/ssr"
)

// Config is the full set of effect, display and demo settings.
type Config struct {
	SSR     SSR     `toml:"ssr"`
	GI      GI      `toml:"gi"`
	Display Display `toml:"display"`
	Demo    Demo    `toml:"demo"`
}

// SSR holds reflection settings. Model and Samples are the names accepted
// by ssr.ParseQualityModel and ssr.ParseSampleTier.
type SSR struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
	Samples string `toml:"samples"`
	ssr.Parameters
}

// GI holds indirect lighting settings.
type GI struct {
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"mode"`
	Variant string `toml:"variant"`
	gi.Parameters
}

// Display is the requested output mode.
type Display struct {
	Width      int  `toml:"width"`
	Height     int  `toml:"height"`
	Fullscreen bool `toml:"fullscreen"`
}

// Demo drives cmd/screenfx.
type Demo struct {
	// Frames is the number of frames rendered before exit.
	Frames int `toml:"frames"`
	// Width and Height size the rendered frames. Zero uses Display.
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// Backend selects the depth convention: "vulkan", "metal", "dx12" or "gl".
	Backend string `toml:"backend"`
	Workers int    `toml:"workers"`
	// Output is the directory WebP dumps are written to. Empty disables dumps.
	Output string `toml:"output"`
	// DumpEvery writes every n-th frame.
	DumpEvery int `toml:"dump_every"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SSR: SSR{
			Enabled:    true,
			Model:      ssr.Prototype.String(),
			Samples:    ssr.Medium.String(),
			Parameters: ssr.DefaultParameters(),
		},
		GI: GI{
			Enabled:    true,
			Mode:       gi.Compute.String(),
			Variant:    gi.FirstBounce.String(),
			Parameters: gi.DefaultParameters(),
		},
		Display: Display{Width: 1920, Height: 1080},
		Demo: Demo{
			Frames:    60,
			Width:     320,
			Height:    180,
			Backend:   "vulkan",
			DumpEvery: 30,
		},
	}
}

// Load returns Default overridden by each file in order.
func Load(paths ...string) (Config, error) {
	cfg := Default()
	for _, path := range paths {
		if err := loadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func loadFile(cfg *Config, path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := Decode(f, cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	screenfx.Logger().Debug("config: loaded", "path", path)
	return nil
}

// Decode reads TOML from r into cfg. Keys missing from r keep their
// current values; unknown keys are an error.
func Decode(r io.Reader, cfg *Config) error {
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return fmt.Errorf("%w: %s", screenfx.ErrConfig, sme.String())
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return fmt.Errorf("%w: line %d column %d: %s", screenfx.ErrConfig, row, col, de.Error())
		}
		return fmt.Errorf("%w: %w", screenfx.ErrConfig, err)
	}
	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).SetIndentTables(true).Encode(cfg)
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, _, err := c.SSR.Resolve(); err != nil {
		return err
	}
	if _, _, err := c.GI.Resolve(); err != nil {
		return err
	}
	if _, err := c.Demo.ResolveBackend(); err != nil {
		return err
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("%w: display %dx%d", screenfx.ErrConfig, c.Display.Width, c.Display.Height)
	}
	if c.Demo.Frames < 0 || c.Demo.Width < 0 || c.Demo.Height < 0 || c.Demo.DumpEvery < 0 || c.Demo.Workers < 0 {
		return fmt.Errorf("%w: demo settings must not be negative", screenfx.ErrConfig)
	}
	return nil
}

// Resolve returns validated reflection parameters with the sample tier
// applied, and the quality model.
func (s SSR) Resolve() (ssr.Parameters, ssr.QualityModel, error) {
	model, err := ssr.ParseQualityModel(s.Model)
	if err != nil {
		return ssr.Parameters{}, 0, err
	}
	tier, err := ssr.ParseSampleTier(s.Samples)
	if err != nil {
		return ssr.Parameters{}, 0, err
	}
	p := s.Parameters
	p.Samples = tier
	if err := p.Validate(); err != nil {
		return ssr.Parameters{}, 0, err
	}
	return p, model, nil
}

// Resolve returns validated indirect lighting parameters and the options
// selecting splatting mode and capture variant.
func (g GI) Resolve() (gi.Parameters, []gi.Option, error) {
	mode, err := gi.ParseSplattingMode(g.Mode)
	if err != nil {
		return gi.Parameters{}, nil, err
	}
	variant, err := gi.ParseVariant(g.Variant)
	if err != nil {
		return gi.Parameters{}, nil, err
	}
	if variant == gi.PositionWriting {
		return gi.Parameters{}, nil, fmt.Errorf("%w: gi variant %s is screen-space only", screenfx.ErrConfig, variant)
	}
	if err := g.Parameters.Validate(); err != nil {
		return gi.Parameters{}, nil, err
	}
	return g.Parameters, []gi.Option{gi.WithMode(mode), gi.WithCaptureVariant(variant)}, nil
}

var backends = map[string]gputypes.Backend{
	"vulkan": gputypes.BackendVulkan,
	"metal":  gputypes.BackendMetal,
	"dx12":   gputypes.BackendDX12,
	"gl":     gputypes.BackendGL,
}

// ResolveBackend maps Backend to a gputypes backend.
func (d Demo) ResolveBackend() (gputypes.Backend, error) {
	b, ok := backends[strings.ToLower(d.Backend)]
	if !ok {
		return b, fmt.Errorf("%w: unknown backend %q", screenfx.ErrConfig, d.Backend)
	}
	return b, nil
}

// FrameSize returns the demo frame size, falling back to the display mode.
func (c Config) FrameSize() (int, int) {
	w, h := c.Demo.Width, c.Demo.Height
	if w == 0 || h == 0 {
		return c.Display.Width, c.Display.Height
	}
	return w, h
}

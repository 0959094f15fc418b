package gi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/framebuf"
)

var (
	// ErrNotInitialized is returned when a capture or pipeline is used
	// before Initialize.
	ErrNotInitialized = screenfx.NewError("gi: not initialized", screenfx.ErrState)

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = screenfx.NewError("gi: already initialized", screenfx.ErrState)

	// ErrClosed is returned when a closed capture or pipeline is used.
	ErrClosed = screenfx.NewError("gi: closed", screenfx.ErrState)
)

// Variant selects which buffers a Capture renders and how it isolates
// surface color from scene lighting.
type Variant uint8

const (
	// FirstBounce captures color and position (8-bit) with the light
	// disabled and white ambient.
	FirstBounce Variant = iota
	// SecondBounce captures color, position and normal (float) with the
	// light intensity at zero and full ambient intensity.
	SecondBounce
	// PositionWriting captures world normals at screen resolution from the
	// viewing camera.
	PositionWriting
)

func (v Variant) String() string {
	switch v {
	case FirstBounce:
		return "FirstBounce"
	case SecondBounce:
		return "SecondBounce"
	case PositionWriting:
		return "PositionWriting"
	default:
		return fmt.Sprintf("Variant(%d)", v)
	}
}

// ParseVariant parses "FirstBounce", "SecondBounce" or "PositionWriting",
// case-insensitively.
func ParseVariant(s string) (Variant, error) {
	for _, v := range []Variant{FirstBounce, SecondBounce, PositionWriting} {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown capture variant %q", screenfx.ErrConfig, s)
}

// CaptureConfig sizes a Capture.
type CaptureConfig struct {
	Variant Variant

	// RenderSize is the side of the square capture grid.
	RenderSize int

	// WorldVolumeBoundary is the half-extent of the cube positions are
	// encoded against.
	WorldVolumeBoundary float32

	// ScreenWidth and ScreenHeight size the PositionWriting normal buffer.
	ScreenWidth, ScreenHeight int
}

// Capture renders light-space buffers for VPL generation.
//
// Lifecycle: NewCapture, Initialize once, RenderTextures every frame, Close.
type Capture struct {
	cfg     CaptureConfig
	pool    persistentPool
	camera  CaptureCamera
	light   Light
	ambient AmbientSettings

	direct   *framebuf.Buffer
	position *framebuf.Buffer
	normal   *framebuf.Buffer

	baseRange     float32
	baseIntensity float32
	initialized   bool
	closed        bool
}

// persistentPool is the part of framebuf.Pool a capture uses.
type persistentPool interface {
	AcquirePersistent(width, height int, format framebuf.Format) (*framebuf.Buffer, error)
	Release(buf *framebuf.Buffer) error
}

// NewCapture validates cfg and its collaborators. No buffers are allocated
// until Initialize.
func NewCapture(pool *framebuf.Pool, camera CaptureCamera, light Light, ambient AmbientSettings, cfg CaptureConfig) (*Capture, error) {
	if pool == nil || camera == nil || light == nil || ambient == nil {
		return nil, fmt.Errorf("%w: gi capture needs a pool, camera, light and ambient settings", screenfx.ErrConfig)
	}
	switch cfg.Variant {
	case FirstBounce, SecondBounce:
		if cfg.RenderSize <= 0 {
			return nil, fmt.Errorf("%w: gi render size %d, want > 0", screenfx.ErrConfig, cfg.RenderSize)
		}
		if !(cfg.WorldVolumeBoundary > 0) {
			return nil, fmt.Errorf("%w: gi world volume boundary %v, want > 0", screenfx.ErrConfig, cfg.WorldVolumeBoundary)
		}
	case PositionWriting:
		if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
			return nil, fmt.Errorf("%w: gi screen size %dx%d", screenfx.ErrConfig, cfg.ScreenWidth, cfg.ScreenHeight)
		}
	default:
		return nil, fmt.Errorf("%w: gi capture %s", screenfx.ErrConfig, cfg.Variant)
	}
	return &Capture{cfg: cfg, pool: pool, camera: camera, light: light, ambient: ambient}, nil
}

// Initialize allocates the capture buffers and snapshots the light's base
// range and intensity. FirstBounce also fits the capture camera to the
// light: far clip at the light range, field of view half the spot angle.
func (c *Capture) Initialize() error {
	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		return ErrAlreadyInitialized
	}

	var err error
	switch c.cfg.Variant {
	case FirstBounce:
		err = c.allocate(c.cfg.RenderSize, c.cfg.RenderSize, framebuf.FormatRGBA8, &c.direct, &c.position)
	case SecondBounce:
		err = c.allocate(c.cfg.RenderSize, c.cfg.RenderSize, framebuf.FormatRGBA32Float, &c.direct, &c.position, &c.normal)
	case PositionWriting:
		err = c.allocate(c.cfg.ScreenWidth, c.cfg.ScreenHeight, framebuf.FormatRGBA8, &c.normal)
	}
	if err != nil {
		return fmt.Errorf("gi: %s capture: %w", c.cfg.Variant, err)
	}

	c.baseRange = c.light.Range()
	c.baseIntensity = c.light.Intensity()
	if c.cfg.Variant == FirstBounce {
		c.camera.SetFarClip(c.baseRange)
		c.camera.SetFieldOfView(c.light.SpotAngle() / 2)
	}
	c.initialized = true
	screenfx.Logger().Debug("gi: capture initialized", "variant", c.cfg.Variant,
		"render_size", c.cfg.RenderSize, "range", c.baseRange, "intensity", c.baseIntensity)
	return nil
}

// allocate acquires one persistent buffer per target, releasing any already
// acquired when a later one fails.
func (c *Capture) allocate(w, h int, format framebuf.Format, targets ...**framebuf.Buffer) error {
	for i, t := range targets {
		b, err := c.pool.AcquirePersistent(w, h, format)
		if err != nil {
			errs := []error{err}
			for _, done := range targets[:i] {
				errs = append(errs, c.pool.Release(*done))
				*done = nil
			}
			return errors.Join(errs...)
		}
		*t = b
	}
	return nil
}

// RenderTextures recaptures every buffer of the variant. Surface color is
// rendered under a LightingOverride, which is restored before the position
// and normal passes even when the color pass fails.
func (c *Capture) RenderTextures() error {
	if c.closed {
		return ErrClosed
	}
	if !c.initialized {
		return ErrNotInitialized
	}

	switch c.cfg.Variant {
	case FirstBounce:
		if err := c.renderDirect(DisableLight); err != nil {
			return err
		}
		return c.camera.RenderPositions(c.position, c.cfg.WorldVolumeBoundary)
	case SecondBounce:
		if err := c.renderDirect(ZeroIntensity); err != nil {
			return err
		}
		if err := c.camera.RenderPositions(c.position, c.cfg.WorldVolumeBoundary); err != nil {
			return err
		}
		return c.camera.RenderNormals(c.normal)
	default:
		c.baseIntensity = c.light.Intensity()
		return c.camera.RenderNormals(c.normal)
	}
}

func (c *Capture) renderDirect(mode Isolation) error {
	guard := Isolate(c.light, c.ambient, mode)
	defer guard.Restore()
	if err := c.camera.Render(c.direct); err != nil {
		return fmt.Errorf("gi: %s color pass: %w", c.cfg.Variant, err)
	}
	return nil
}

// Close releases the capture buffers. Close is idempotent.
func (c *Capture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.release()
}

// release returns the capture buffers to the pool and leaves the capture
// uninitialized, so Initialize may run again.
func (c *Capture) release() error {
	c.initialized = false
	var errs []error
	for _, b := range []**framebuf.Buffer{&c.direct, &c.position, &c.normal} {
		if *b != nil {
			errs = append(errs, c.pool.Release(*b))
			*b = nil
		}
	}
	return errors.Join(errs...)
}

// Variant returns the capture variant.
func (c *Capture) Variant() Variant { return c.cfg.Variant }

// RenderSize returns the side of the capture grid.
func (c *Capture) RenderSize() int { return c.cfg.RenderSize }

// WorldVolumeBoundary returns the position encoding half-extent.
func (c *Capture) WorldVolumeBoundary() float32 { return c.cfg.WorldVolumeBoundary }

// Initialized reports whether Initialize has succeeded.
func (c *Capture) Initialized() bool { return c.initialized }

// Direct returns the surface color buffer, or nil.
func (c *Capture) Direct() *framebuf.Buffer { return c.direct }

// Position returns the encoded world position buffer, or nil.
func (c *Capture) Position() *framebuf.Buffer { return c.position }

// Normal returns the encoded world normal buffer, or nil.
func (c *Capture) Normal() *framebuf.Buffer { return c.normal }

// BaseRange returns the light range snapshot taken by Initialize.
func (c *Capture) BaseRange() float32 { return c.baseRange }

// BaseIntensity returns the last light intensity snapshot.
func (c *Capture) BaseIntensity() float32 { return c.baseIntensity }

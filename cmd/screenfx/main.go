// Command screenfx renders a small demo scene with indirect lighting and
// screen-space reflections and writes selected frames as WebP images.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/config"
	"github.com/gogpu/screenfx/host"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// run parses args, renders the demo and returns the first failure.
// An interrupt through ctx ends the loop without an error.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("screenfx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", "", "TOML configuration file")
		frames      = fs.Int("frames", -1, "frames to render, 0 runs until interrupted")
		output      = fs.String("output", "", "directory for WebP dumps")
		mode        = fs.String("mode", "", "splatting mode: CPU, COMPUTE or GPU")
		model       = fs.String("model", "", "reflection model: NORMAL or PROTOTYPE")
		samples     = fs.String("samples", "", "cone samples: LOW, MEDIUM or HIGH")
		backend     = fs.String("backend", "", "depth convention of backend: vulkan, metal, dx12 or gl")
		toggleEvery = fs.Int("toggle-every", 0, "cycle the splatting mode every n frames")
		verbose     = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	screenfx.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *frames >= 0 {
		cfg.Demo.Frames = *frames
	}
	if *output != "" {
		cfg.Demo.Output = *output
	}
	if *mode != "" {
		cfg.GI.Mode = *mode
	}
	if *model != "" {
		cfg.SSR.Model = *model
	}
	if *samples != "" {
		cfg.SSR.Samples = *samples
	}
	if *backend != "" {
		cfg.Demo.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	d, err := newDemo(cfg, *toggleEvery)
	if err != nil {
		return fmt.Errorf("failed to build demo: %w", err)
	}
	display := host.NewDisplay(host.DisplayMode{
		Width:      cfg.Display.Width,
		Height:     cfg.Display.Height,
		Fullscreen: cfg.Display.Fullscreen,
	})
	loop := host.NewLoop(d,
		host.WithAnimators(d.animators...),
		host.WithFixedStep(time.Second/30),
		host.WithFPSCounter(host.NewFPSCounter()),
		host.WithDisplay(display),
	)

	n, err := loop.Run(ctx, cfg.Demo.Frames)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("render failed after %d frames: %w", n, err)
	}
	screenfx.Logger().Info("rendered frames", "frames", n, "width", d.width, "height", d.height)
	return nil
}

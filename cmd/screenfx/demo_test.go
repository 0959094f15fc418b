package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/screenfx/config"
	"github.com/gogpu/screenfx/host"
)

func TestDemoWritesFrames(t *testing.T) {
	cfg := config.Default()
	cfg.Demo.Width, cfg.Demo.Height = 32, 18
	cfg.Demo.Frames = 3
	cfg.Demo.DumpEvery = 2
	cfg.Demo.Output = t.TempDir()
	cfg.GI.RenderSize = 4

	d, err := newDemo(cfg, 1)
	if err != nil {
		t.Fatal(err)
	}
	loop := host.NewLoop(d, host.WithAnimators(d.animators...), host.WithFixedStep(time.Second/30))
	n, err := loop.Run(context.Background(), cfg.Demo.Frames)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Errorf("Run() = %d frames, want 3", n)
	}
	for _, name := range []string{"frame_0000.webp", "frame_0002.webp", "capture_0000.webp", "capture_0002.webp"} {
		info, err := os.Stat(filepath.Join(cfg.Demo.Output, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Demo.Output, "frame_0001.webp")); err == nil {
		t.Error("frame 1 should not be dumped")
	}
	if d.pool.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after shutdown, want 0", d.pool.Outstanding())
	}
}

func TestRun(t *testing.T) {
	small := filepath.Join(t.TempDir(), "small.toml")
	conf := "[demo]\nwidth = 16\nheight = 9\n\n[gi]\nrender_size = 4\n"
	if err := os.WriteFile(small, []byte(conf), 0o600); err != nil {
		t.Fatal(err)
	}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		args    []string
		wantErr bool
	}{
		{"one frame", context.Background(), []string{"-config", small, "-frames", "1"}, false},
		{"interrupted", cancelled, []string{"-config", small, "-frames", "0"}, false},
		{"unknown flag", context.Background(), []string{"-no-such-flag"}, true},
		{"missing config", context.Background(), []string{"-config", filepath.Join(t.TempDir(), "absent.toml")}, true},
		{"bad mode", context.Background(), []string{"-config", small, "-mode", "RAYTRACE"}, true},
		{"bad backend", context.Background(), []string{"-config", small, "-backend", "glide"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.ctx, tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Errorf("run(%v) = %v, want error %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

package device

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
)

func TestCompileWGSL(t *testing.T) {
	words, err := CompileWGSL(scaleKernelWGSL)
	skipOnNagaLimitation(t, err)
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	if len(words) == 0 {
		t.Fatal("SPIR-V output is empty")
	}
	if words[0] != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
	}
}

func TestCompileWGSLInvalid(t *testing.T) {
	if _, err := CompileWGSL("fn broken( {"); err == nil {
		t.Error("expected error for invalid WGSL")
	}
}

func TestNewKernelInvalid(t *testing.T) {
	c := NewContext()
	tests := []struct {
		name string
		desc KernelDesc
	}{
		{"no source", KernelDesc{Label: "a", EntryPoint: "main"}},
		{"no entry point", KernelDesc{Label: "b", Source: scaleKernelWGSL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.NewKernel(tt.desc); !errors.Is(err, ErrInvalidKernel) {
				t.Errorf("NewKernel = %v, want ErrInvalidKernel", err)
			}
		})
	}
}

func TestKernelCPUOnly(t *testing.T) {
	c := NewContext()
	k, err := c.NewKernel(scaleKernelDesc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	defer k.Destroy()

	if k.PipelineReady() {
		t.Error("PipelineReady() = true without a HAL device")
	}
	if k.Label() != "scale" {
		t.Errorf("Label() = %q, want scale", k.Label())
	}

	var calls atomic.Int32
	if k.Dispatch(4, 3, scaleBindings(2, []float32{1}), func(x, y int) { calls.Add(1) }) {
		t.Error("Dispatch ran on a device without one")
	}
	if calls.Load() != 12 {
		t.Errorf("Dispatch invoked %d groups, want 12", calls.Load())
	}
	calls.Store(0)
	k.DispatchTexels(5, 9, nil, func(int) { calls.Add(1) })
	if calls.Load() != 9 {
		t.Errorf("DispatchTexels invoked %d rows, want 9", calls.Load())
	}
	if err := k.Run(1, 1, scaleBindings(2, []float32{1})); !errors.Is(err, ErrFallbackToCPU) {
		t.Errorf("Run = %v, want ErrFallbackToCPU", err)
	}
}

func TestKernelHALPipeline(t *testing.T) {
	dev, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	c := NewContext(WithHAL(dev, queue))
	k, err := c.NewKernel(scaleKernelDesc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	if !k.ShaderReady() {
		_, cerr := CompileWGSL(scaleKernelWGSL)
		skipOnNagaLimitation(t, cerr)
		t.Fatalf("shader not ready: %v", cerr)
	}
	if !k.PipelineReady() {
		t.Error("PipelineReady() = false with a noop device")
	}
	if len(k.SPIRV()) == 0 {
		t.Error("SPIRV() is empty")
	}

	k.Destroy()
	k.Destroy()
	if k.PipelineReady() {
		t.Error("PipelineReady() = true after Destroy")
	}
}

func TestKernelDispatchUsesDevice(t *testing.T) {
	dev, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	cdev := &countingDevice{Device: dev}
	cqueue := &countingQueue{Queue: queue}

	c := NewContext(WithHAL(cdev, cqueue))
	k, err := c.NewKernel(scaleKernelDesc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	defer k.Destroy()
	if !k.PipelineReady() {
		_, cerr := CompileWGSL(scaleKernelWGSL)
		skipOnNagaLimitation(t, cerr)
		t.Fatalf("PipelineReady() = false: %v", cerr)
	}

	out := make([]float32, 4)
	var mirror atomic.Int32
	bufs := scaleBindings(2, []float32{1, 2, 3, 4})
	if !k.Dispatch(1, 1, bufs, func(x, y int) { mirror.Add(1); out[x] = 42 }) {
		t.Fatal("Dispatch did not run on the device")
	}
	if mirror.Load() != 0 {
		t.Errorf("CPU mirror ran %d times, want 0", mirror.Load())
	}

	tests := []struct {
		name string
		got  int32
		want int32
	}{
		{"encoders", cdev.encoders.Load(), 1},
		{"buffers", cdev.buffers.Load(), 4}, // three bindings and one staging buffer
		{"bind groups", cdev.bindGroups.Load(), 1},
		{"writes", cqueue.writes.Load(), 3},
		{"submits", cqueue.submits.Load(), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	// Without bound buffers the kernel stays on its mirror.
	if k.Dispatch(4, 1, nil, func(x, y int) { out[x] = 42 }) {
		t.Error("Dispatch without buffers ran on the device")
	}
	if out[3] != 42 {
		t.Errorf("mirror out[3] = %v, want 42", out[3])
	}
	if cqueue.submits.Load() != 1 {
		t.Errorf("submits after mirror dispatch = %d, want 1", cqueue.submits.Load())
	}
}

func TestKernelRunRejectsBindings(t *testing.T) {
	dev, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	c := NewContext(WithHAL(dev, queue))
	k, err := c.NewKernel(scaleKernelDesc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	defer k.Destroy()
	if !k.PipelineReady() {
		t.Skip("no pipeline on the noop device")
	}
	if err := k.Run(1, 1, [][]byte{{0}}); !errors.Is(err, ErrInvalidKernel) {
		t.Errorf("Run with one buffer = %v, want ErrInvalidKernel", err)
	}
}

func TestKernelSoftwareMatchesMirror(t *testing.T) {
	dev, queue, cleanup := createSoftwareDevice(t)
	defer cleanup()

	c := NewContext(WithHAL(dev, queue))
	k, err := c.NewKernel(scaleKernelDesc)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	defer k.Destroy()
	if !k.PipelineReady() {
		t.Skip("software backend did not build the pipeline")
	}

	input := []float32{1, -2, 0.5, 8, 3}
	const scale = 1.5
	bufs := scaleBindings(scale, input)
	fillSentinel(bufs[2])
	if !k.Dispatch(1, 1, bufs, func(int, int) {}) {
		t.Fatal("Dispatch did not run on the device")
	}
	got := make([]float32, len(input))
	ReadFloat32s(got, bufs[2])
	if untouched(bufs[2]) {
		t.Skip("software interpreter left the output untouched")
	}
	for i, v := range input {
		if want := v * scale; got[i] != want {
			t.Errorf("output[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestBufferSize(t *testing.T) {
	tests := []struct {
		n    int
		min  uint64
		want uint64
	}{
		{0, 0, 4},
		{3, 0, 4},
		{5, 0, 8},
		{16, 32, 32},
		{40, 32, 40},
	}
	for _, tt := range tests {
		if got := bufferSize(tt.n, tt.min); got != tt.want {
			t.Errorf("bufferSize(%d, %d) = %d, want %d", tt.n, tt.min, got, tt.want)
		}
	}
}

func TestParamsLayout(t *testing.T) {
	got := Params{}.U32(1).F32(1)
	want := []byte{1, 0, 0, 0, 0, 0, 0x80, 0x3f}
	if !bytes.Equal(got, want) {
		t.Errorf("Params = %v, want %v", []byte(got), want)
	}
	vals := make([]float32, 3)
	ReadFloat32s(vals, Float32Bytes([]float32{0.25, -3}))
	if vals[0] != 0.25 || vals[1] != -3 || vals[2] != 0 {
		t.Errorf("ReadFloat32s = %v, want [0.25 -3 0]", vals)
	}
}

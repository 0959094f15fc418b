package device

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// createSoftwareDevice opens the CPU-interpreting software backend.
func createSoftwareDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	instance, err := software.API{}.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		t.Skipf("software backend unavailable: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Skip("software backend has no adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Skipf("software adapter open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// countingDevice counts the HAL objects a dispatch creates.
type countingDevice struct {
	hal.Device
	buffers, encoders, bindGroups atomic.Int32
}

func (d *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffers.Add(1)
	return d.Device.CreateBuffer(desc)
}

func (d *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups.Add(1)
	return d.Device.CreateBindGroup(desc)
}

func (d *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	d.encoders.Add(1)
	return d.Device.CreateCommandEncoder(desc)
}

// countingQueue counts uploads and submissions.
type countingQueue struct {
	hal.Queue
	writes, submits atomic.Int32
}

func (q *countingQueue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	q.writes.Add(1)
	return q.Queue.WriteBuffer(buffer, offset, data)
}

func (q *countingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.submits.Add(1)
	return q.Queue.Submit(cmds)
}

// scaleBindings lays out the buffers of the scale kernel.
func scaleBindings(scale float32, input []float32) [][]byte {
	return [][]byte{
		Params{}.U32(uint32(len(input))).F32(scale).U32(0).U32(0),
		Float32Bytes(input),
		make([]byte, len(input)*4),
	}
}

const sentinel = 0xAB

func fillSentinel(b []byte) {
	for i := range b {
		b[i] = sentinel
	}
}

func untouched(b []byte) bool {
	for _, v := range b {
		if v != sentinel {
			return false
		}
	}
	return true
}

// skipOnNagaLimitation skips the test when naga reports a feature it does
// not implement yet.
func skipOnNagaLimitation(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

// fakeProvider is a gpucontext.DeviceProvider exposing HAL objects.
type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *fakeProvider) Device() gpucontext.Device   { return p.device }
func (p *fakeProvider) Queue() gpucontext.Queue     { return p.queue }
func (p *fakeProvider) Adapter() gpucontext.Adapter { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeSoftware}
}
func (p *fakeProvider) HalDevice() any { return p.device }
func (p *fakeProvider) HalQueue() any  { return p.queue }

// plainProvider does not expose HAL objects.
type plainProvider struct{ fakeProvider }

func (p *plainProvider) HalDevice() {}

const scaleKernelWGSL = `
struct Params {
    count: u32,
    scale: f32,
    _pad0: u32,
    _pad1: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(64)
fn cs_scale(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= params.count) {
        return;
    }
    output[id.x] = input[id.x] * params.scale;
}
`

var scaleKernelDesc = KernelDesc{
	Label:      "scale",
	Source:     scaleKernelWGSL,
	EntryPoint: "cs_scale",
	Bindings: []Binding{
		{Kind: BindingUniform, MinSize: 16},
		{Kind: BindingReadOnlyStorage},
		{Kind: BindingStorage},
	},
}

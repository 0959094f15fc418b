// Package device provides the graphics context that screenfx pipelines run
// against and the compute kernels they dispatch.
//
// A Context records which graphics backend the host renders with (and
// therefore its depth-range convention) and, optionally, a HAL device shared
// by the host. Kernels compile their WGSL source with naga and, when a HAL
// device is present, create real compute pipelines for it. A kernel with a
// pipeline runs on the device: its buffers are uploaded, the pass is encoded
// and submitted, and the queue is drained before results are read back.
// Without one, the kernel's CPU mirror runs one workgroup per cell on the
// context's worker pool.
package device

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/screenfx"
	"github.com/gogpu/screenfx/internal/parallel"
	"github.com/gogpu/screenfx/projection"
)

// ErrNoHAL is returned by FromProvider when the provider does not expose
// HAL device and queue objects.
var ErrNoHAL = screenfx.NewError("device: provider does not expose HAL types", screenfx.ErrConfig)

// Context is the graphics context shared by the screenfx pipelines.
//
// Thread safety: a Context is immutable after construction except for Close.
type Context struct {
	backend gputypes.Backend
	depth   projection.DepthRange
	device  hal.Device
	queue   hal.Queue
	adapter gpucontext.AdapterInfo
	workers *parallel.WorkerPool
	ownPool bool
}

// Option configures a Context.
type Option func(*options)

type options struct {
	backend    gputypes.Backend
	depth      projection.DepthRange
	depthSet   bool
	device     hal.Device
	queue      hal.Queue
	workers    int
	workersSet bool
}

// WithBackend sets the graphics backend the host renders with.
// The depth-range convention follows the backend unless WithDepthRange is given.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithDepthRange sets the depth-range convention explicitly.
func WithDepthRange(r projection.DepthRange) Option {
	return func(o *options) {
		o.depth = r
		o.depthSet = true
	}
}

// WithHAL attaches a HAL device and queue. Kernels create compute pipelines
// on the device.
func WithHAL(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.device = device
		o.queue = queue
	}
}

// WithWorkers gives the context its own worker pool of n workers instead of
// the process-wide one. n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
		o.workersSet = true
	}
}

// NewContext creates a context. Without options it describes a Vulkan host
// (half-range depth) with no HAL device.
func NewContext(opts ...Option) *Context {
	o := options{backend: gputypes.BackendVulkan}
	for _, opt := range opts {
		opt(&o)
	}
	depth := projection.ForBackend(o.backend)
	if o.depthSet {
		depth = o.depth
	}
	c := &Context{
		backend: o.backend,
		depth:   depth,
		device:  o.device,
		queue:   o.queue,
		adapter: gpucontext.AdapterInfo{Name: "CPU", Type: gpucontext.AdapterTypeSoftware},
	}
	if o.workersSet {
		c.workers = parallel.NewWorkerPool(o.workers)
		c.ownPool = true
	} else {
		c.workers = parallel.Shared()
	}

	screenfx.Logger().Info("device: context created",
		"backend", c.backend, "depth", c.depth, "hal", c.device != nil, "workers", c.workers.Workers())
	return c
}

// FromProvider creates a context that shares the host's GPU device.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue, the convention used across the gogpu stack.
func FromProvider(provider gpucontext.DeviceProvider, backend gputypes.Backend, opts ...Option) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrNoHAL)
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}

	all := append([]Option{WithBackend(backend)}, opts...)
	all = append(all, WithHAL(dev, queue))
	c := NewContext(all...)
	c.adapter = provider.AdapterInfo()
	screenfx.Logger().Info("device: using shared GPU device", "adapter", c.adapter.Name)
	return c, nil
}

// Backend returns the graphics backend.
func (c *Context) Backend() gputypes.Backend { return c.backend }

// DepthRange returns the depth-range convention of the backend.
func (c *Context) DepthRange() projection.DepthRange { return c.depth }

// HalfDepthRange reports whether projections must be rewritten to the
// half-range convention.
func (c *Context) HalfDepthRange() bool { return c.depth == projection.HalfRange }

// HalDevice returns the attached HAL device, or nil.
func (c *Context) HalDevice() hal.Device { return c.device }

// HalQueue returns the attached HAL queue, or nil.
func (c *Context) HalQueue() hal.Queue { return c.queue }

// HasDevice reports whether a HAL device is attached.
func (c *Context) HasDevice() bool { return c.device != nil }

// AdapterInfo returns the adapter description.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo { return c.adapter }

// Rows runs fn for every row in [0, n) on the worker pool and returns when
// all rows are done.
func (c *Context) Rows(n int, fn func(y int)) {
	c.workers.Rows(n, fn)
}

// Close releases the context's own worker pool, if it has one.
// The HAL device belongs to the host and is not destroyed.
func (c *Context) Close() {
	if c.ownPool {
		c.workers.Close()
	}
}

package device

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/screenfx"
)

// ErrInvalidKernel is returned for a kernel description without source or
// entry point.
var ErrInvalidKernel = screenfx.NewError("device: invalid kernel description", screenfx.ErrConfig)

// ErrFallbackToCPU is returned by Run when the kernel has no HAL pipeline.
// Callers run the kernel's CPU mirror instead.
var ErrFallbackToCPU = errors.New("device: falling back to CPU mirror")

// ErrDispatch wraps HAL failures while running a kernel.
var ErrDispatch = screenfx.NewError("device: kernel dispatch failed", screenfx.ErrResource)

// BindingKind is the buffer binding type of a kernel resource.
type BindingKind uint8

const (
	// BindingUniform is a uniform buffer of parameters.
	BindingUniform BindingKind = iota
	// BindingReadOnlyStorage is a read-only storage buffer (input texels).
	BindingReadOnlyStorage
	// BindingStorage is a read-write storage buffer (output texels).
	BindingStorage
)

func (k BindingKind) bufferType() gputypes.BufferBindingType {
	switch k {
	case BindingUniform:
		return gputypes.BufferBindingTypeUniform
	case BindingReadOnlyStorage:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeStorage
	}
}

// Binding describes one resource in bind group 0 of a kernel, in binding order.
type Binding struct {
	Kind    BindingKind
	MinSize uint64
}

// KernelDesc describes a compute kernel.
type KernelDesc struct {
	// Label names the kernel in logs and HAL object labels.
	Label string

	// Source is the WGSL source.
	Source string

	// EntryPoint is the compute entry point.
	EntryPoint string

	// Bindings lists the group 0 bindings.
	Bindings []Binding

	// Workgroup is the @workgroup_size of the entry point in x and y, used
	// by DispatchTexels to size the grid. Zero means 1.
	Workgroup [2]int
}

// Kernel is a compute kernel: WGSL compiled to SPIR-V, an optional HAL
// compute pipeline, and a CPU mirror that runs the same per-invocation
// algorithm.
//
// Thread safety: Dispatch may be called concurrently; Destroy must not race
// with Dispatch.
type Kernel struct {
	mu  sync.Mutex
	ctx *Context

	desc  KernelDesc
	spirv []uint32

	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	shaderModule   hal.ShaderModule
	pipeline       hal.ComputePipeline

	shaderReady   bool
	pipelineReady bool
}

// NewKernel compiles desc and, when the context has a HAL device, creates its
// compute pipeline. Compilation or pipeline failures are logged and leave the
// kernel running on its CPU mirror only.
func (c *Context) NewKernel(desc KernelDesc) (*Kernel, error) {
	if desc.Source == "" || desc.EntryPoint == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKernel, desc.Label)
	}
	k := &Kernel{ctx: c, desc: desc}

	spirv, err := CompileWGSL(desc.Source)
	if err != nil {
		screenfx.Logger().Warn("device: kernel compile failed, CPU mirror only",
			"kernel", desc.Label, "err", err)
		return k, nil
	}
	k.spirv = spirv
	k.shaderReady = true
	screenfx.Logger().Debug("device: kernel compiled", "kernel", desc.Label, "words", len(spirv))

	if c.device == nil {
		return k, nil
	}
	if err := k.createPipeline(); err != nil {
		k.destroyPipeline()
		screenfx.Logger().Warn("device: HAL pipeline skipped", "kernel", desc.Label, "err", err)
		return k, nil
	}
	k.pipelineReady = true
	screenfx.Logger().Info("device: kernel pipeline ready", "kernel", desc.Label)
	return k, nil
}

func (k *Kernel) createPipeline() error {
	dev := k.ctx.device
	label := k.desc.Label

	module, err := createShaderModule(dev, label+"_shader", k.spirv)
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	k.shaderModule = module

	entries := make([]gputypes.BindGroupLayoutEntry, len(k.desc.Bindings))
	for i, b := range k.desc.Bindings {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           b.Kind.bufferType(),
				MinBindingSize: b.MinSize,
			},
		}
	}
	layout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	k.bindLayout = layout

	pl, err := dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	k.pipelineLayout = pl

	pipeline, err := dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: pl,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: k.desc.EntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	k.pipeline = pipeline
	return nil
}

// Dispatch runs a groupsX by groupsY grid of workgroups and returns after
// every invocation has finished.
//
// When the kernel has a HAL pipeline and bufs is non-nil, bufs holds the
// bytes of each binding in binding order; the kernel runs on the device and
// every BindingStorage slice is overwritten with the result. Dispatch then
// reports true. Otherwise fn, the CPU mirror, is invoked once per workgroup
// on the worker pool and Dispatch reports false. A failed device run is
// logged and falls back to the mirror.
func (k *Kernel) Dispatch(groupsX, groupsY int, bufs [][]byte, fn func(x, y int)) bool {
	if bufs != nil {
		err := k.Run(groupsX, groupsY, bufs)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			screenfx.Logger().Warn("device: GPU dispatch failed, using CPU mirror",
				"kernel", k.desc.Label, "err", err)
		}
	}
	k.ctx.workers.Grid(groupsX, groupsY, fn)
	return false
}

// DispatchTexels runs a per-texel kernel over a width by height image. The
// device grid covers the image in workgroups of the kernel's Workgroup size;
// the CPU mirror fn walks one row per call. bufs and the result are as for
// Dispatch.
func (k *Kernel) DispatchTexels(width, height int, bufs [][]byte, fn func(y int)) bool {
	if bufs != nil {
		wx, wy := max(k.desc.Workgroup[0], 1), max(k.desc.Workgroup[1], 1)
		err := k.Run((width+wx-1)/wx, (height+wy-1)/wy, bufs)
		if err == nil {
			return true
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			screenfx.Logger().Warn("device: GPU dispatch failed, using CPU mirror",
				"kernel", k.desc.Label, "err", err)
		}
	}
	k.ctx.workers.Rows(height, fn)
	return false
}

// Run executes the kernel on the HAL device: it uploads bufs, one per
// binding, encodes a compute pass of groupsX by groupsY workgroups, submits
// it and waits for the queue, then reads every BindingStorage buffer back
// into its slice. Run returns ErrFallbackToCPU when there is no pipeline.
func (k *Kernel) Run(groupsX, groupsY int, bufs [][]byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.pipelineReady {
		return ErrFallbackToCPU
	}
	if len(bufs) != len(k.desc.Bindings) {
		return fmt.Errorf("%w: %q takes %d buffers, got %d",
			ErrInvalidKernel, k.desc.Label, len(k.desc.Bindings), len(bufs))
	}
	if groupsX <= 0 || groupsY <= 0 {
		return nil
	}
	dev, queue := k.ctx.device, k.ctx.queue
	if queue == nil {
		return fmt.Errorf("%w: %q has no queue", ErrDispatch, k.desc.Label)
	}

	res := &dispatchResources{dev: dev}
	defer res.release()

	label := k.desc.Label
	bound := make([]hal.Buffer, len(bufs))
	sizes := make([]uint64, len(bufs))
	entries := make([]gputypes.BindGroupEntry, len(bufs))
	for i, b := range k.desc.Bindings {
		size := bufferSize(len(bufs[i]), b.MinSize)
		usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
		if b.Kind == BindingUniform {
			usage = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
		}
		buf, err := res.buffer(label, i, size, usage)
		if err != nil {
			return err
		}
		if len(bufs[i]) > 0 {
			if err := queue.WriteBuffer(buf, 0, padded(bufs[i])); err != nil {
				return fmt.Errorf("%w: %s binding %d upload: %w", ErrDispatch, label, i, err)
			}
		}
		bound[i], sizes[i] = buf, size
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Size: size},
		}
	}

	bg, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label + "_bind_group",
		Layout:  k.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: %s bind group: %w", ErrDispatch, label, err)
	}
	res.bindGroup = bg

	staging := make([]hal.Buffer, len(bufs))
	for i, b := range k.desc.Bindings {
		if b.Kind != BindingStorage {
			continue
		}
		buf, err := res.buffer(label+"_staging", i, sizes[i], gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		staging[i] = buf
	}

	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("%w: %s encoder: %w", ErrDispatch, label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("%w: %s begin encoding: %w", ErrDispatch, label, err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label + "_pass"})
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32(groupsX), uint32(groupsY), 1)
	pass.End()
	for i, dst := range staging {
		if dst != nil {
			encoder.CopyBufferToBuffer(bound[i], dst, []hal.BufferCopy{{Size: sizes[i]}})
		}
	}
	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("%w: %s end encoding: %w", ErrDispatch, label, err)
	}
	res.cmd = cmd

	index, err := queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return fmt.Errorf("%w: %s submit: %w", ErrDispatch, label, err)
	}
	if queue.PollCompleted() < index {
		if err := dev.WaitIdle(); err != nil {
			return fmt.Errorf("%w: %s wait: %w", ErrDispatch, label, err)
		}
	}

	for i, src := range staging {
		if src == nil {
			continue
		}
		if err := readBuffer(dev, src, bufs[i]); err != nil {
			return fmt.Errorf("%w: %s binding %d readback: %w", ErrDispatch, label, i, err)
		}
	}
	return nil
}

// dispatchResources tracks the per-run HAL objects released after readback.
type dispatchResources struct {
	dev       hal.Device
	buffers   []hal.Buffer
	bindGroup hal.BindGroup
	cmd       hal.CommandBuffer
}

func (r *dispatchResources) buffer(label string, binding int, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("%s_%d", label, binding),
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s binding %d buffer: %w", ErrDispatch, label, binding, err)
	}
	r.buffers = append(r.buffers, buf)
	return buf, nil
}

func (r *dispatchResources) release() {
	if r.cmd != nil {
		r.dev.FreeCommandBuffer(r.cmd)
	}
	if r.bindGroup != nil {
		r.dev.DestroyBindGroup(r.bindGroup)
	}
	for _, b := range r.buffers {
		r.dev.DestroyBuffer(b)
	}
}

// bufferSize rounds n up to a multiple of 4 bytes, at least minSize and 4.
func bufferSize(n int, minSize uint64) uint64 {
	size := max(uint64(n), minSize, 4)
	return (size + 3) &^ 3
}

func padded(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, (len(data)+3)&^3)
	copy(out, data)
	return out
}

func readBuffer(dev hal.Device, buf hal.Buffer, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	m, err := dev.MapBuffer(buf, 0, bufferSize(len(dst), 0))
	if err != nil {
		return err
	}
	copy(dst, unsafe.Slice((*byte)(m.Ptr), len(dst)))
	return dev.UnmapBuffer(buf)
}

// Label returns the kernel label.
func (k *Kernel) Label() string { return k.desc.Label }

// ShaderReady reports whether the WGSL source compiled.
func (k *Kernel) ShaderReady() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.shaderReady
}

// PipelineReady reports whether a HAL compute pipeline exists.
func (k *Kernel) PipelineReady() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pipelineReady
}

// SPIRV returns the compiled SPIR-V words, or nil.
func (k *Kernel) SPIRV() []uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.spirv
}

// Destroy releases the kernel's HAL objects. Destroy is safe to call multiple times.
func (k *Kernel) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.destroyPipeline()
	k.pipelineReady = false
}

func (k *Kernel) destroyPipeline() {
	dev := k.ctx.device
	if dev == nil {
		return
	}
	if k.pipeline != nil {
		dev.DestroyComputePipeline(k.pipeline)
		k.pipeline = nil
	}
	if k.pipelineLayout != nil {
		dev.DestroyPipelineLayout(k.pipelineLayout)
		k.pipelineLayout = nil
	}
	if k.bindLayout != nil {
		dev.DestroyBindGroupLayout(k.bindLayout)
		k.bindLayout = nil
	}
	if k.shaderModule != nil {
		dev.DestroyShaderModule(k.shaderModule)
		k.shaderModule = nil
	}
}

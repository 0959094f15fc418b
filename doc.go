// Package screenfx provides screen-space rendering effects for real-time hosts.
//
// # Overview
//
// screenfx implements two frame-level post-processing pipelines:
//
//   - Screen-space reflections (package ssr): a linear ray march (NORMAL
//     quality model) or an adaptive ray march followed by cone-sampled
//     reflections (PROTOTYPE quality model), with separable blur, edge
//     filtering and composite stages.
//   - Indirect lighting (package gi): a virtual point light (VPL)
//     approximation of one or two light bounces driven by a reflective
//     shadow map capture, with CPU readback, compute buffer and texture
//     splat back-ends.
//
// Both pipelines pull intermediate buffers from a shared
// [github.com/gogpu/screenfx/framebuf.Pool] and return every transient
// resource before a frame ends, on success and on failure.
//
// # Architecture
//
// The module is organized into:
//   - framebuf: frame buffers, formats and the resource pool
//   - projection: matrices, depth-range conventions and ProjectionInfo
//   - device: graphics context and WGSL compute kernels (via naga)
//   - ssr, gi: the effect pipelines
//   - world: reference scene collaborators (camera, spot light, renderer)
//   - host, config: the render loop glue and TOML configuration
//
// # Logging
//
// screenfx is silent by default. Call [SetLogger] to route diagnostics to
// a [log/slog] handler.
//
// # Errors
//
// Failures are classified by wrapping one of [ErrConfig], [ErrResource] or
// [ErrState]. Use [errors.Is] to test the class.
package screenfx

// Package gi approximates one bounce of indirect light with virtual point
// lights (VPLs).
//
// Every frame a Capture renders the scene from the spot light's point of
// view into a small reflective shadow map (surface color under neutral
// light, world position and optionally world normal). A Generator turns
// each capture texel into a VPL through one of three interchangeable
// back-ends, and the Pipeline shades the viewing camera's frame with the
// resulting lights.
//
// Scene objects are reached only through the small interfaces in this
// package; the host injects them when the pipeline is built.
package gi

// Package host runs the per-frame loop that drives the screenfx effects:
// initialize, render frames, shut down. It also carries the small pieces of
// host glue around the loop: an FPS counter, the splatting-mode toggle and
// the requested display mode.
package host

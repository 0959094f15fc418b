// Package ssr implements screen-space reflections as a post-process over a
// rendered frame.
//
// Two quality models are available. NORMAL marches one ray per pixel in
// fixed steps and blurs the result. PROTOTYPE first estimates the reflected
// ray length with an adaptive march, then gathers reflection color from a
// cone of samples around the hit, edge-filters and blurs it, and fades it by
// distance when compositing.
//
// All intermediate buffers come from a framebuf.Pool and are released before
// Render returns, on success and on failure.
package ssr

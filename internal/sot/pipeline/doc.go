// Package pipeline drives tracking runs end to end: it drains a sequence
// source through one Controller per sequence, forwards finished trajectories
// to a result sink, and aggregates run-level counters.
//
// The pipeline owns all I/O and logging around layers 1-8. Frames are loaded
// here before a controller steps, so the layers never block. Sequences run
// concurrently on a bounded errgroup pool; within a sequence, frames stay
// strictly ordered. Logging follows the three-stream pattern (ops, diag,
// trace) configured via SetLogWriters — silent unless writers are installed.
package pipeline

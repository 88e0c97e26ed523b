// Package l8track owns Layer 8 (Track) of the tracking data model.
//
// Responsibilities: the per-sequence tracking state machine. A Controller
// owns one sequence's template, prior box, and lifecycle state, runs the
// layer 1-7 pipeline once per frame, and applies the confidence-driven
// transitions between initialized, tracking, degraded, and lost. Lost is
// terminal: the template freezes and later frames extrapolate the last
// confident box for bookkeeping only.
//
// Dependency rule: L8 depends on L1-L7, internal/sot, internal/nnet, and
// internal/config; never on the pipeline above it.
package l8track

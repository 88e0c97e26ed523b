// Package l6match owns Layer 6 (Match) of the tracking data model.
//
// Responsibilities: cross-set correspondence between the template and the
// conditioned search region. Multi-head scaled dot-product attention runs
// with search points as queries and template points plus context tokens as
// keys/values; padded slots get exactly zero attention mass on both sides.
// The layer emits fused search features, each point's expected template
// coordinate, and the attention mass it spent on real template points.
//
// Dependency rule: L6 depends on L1-L5, internal/sot, and internal/nnet;
// never on higher layers.
package l6match

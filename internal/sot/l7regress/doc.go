// Package l7regress owns Layer 7 (Regress) of the tracking data model.
//
// Responsibilities: turning matched search features into one predicted box
// and a confidence score. Every real search point casts a centre vote from
// its matched template coordinate; gated weighted refinement aggregates the
// votes, vote agreement becomes the confidence, and extents and heading are
// updated conservatively from the gated inlier points.
//
// Dependency rule: L7 depends on L1-L6, internal/sot, and internal/nnet;
// never on higher layers.
package l7regress

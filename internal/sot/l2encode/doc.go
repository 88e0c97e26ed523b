// Package l2encode owns Layer 2 (Encode) of the tracking data model.
//
// Responsibilities: mapping a fixed-capacity point set to per-point feature
// embeddings plus one pooled set descriptor. The encoding is permutation
// invariant: reordering input points permutes the per-point rows and leaves
// the descriptor unchanged, and padding slots carry exactly zero weight.
//
// Dependency rule: L2 depends on L1, internal/sot, and internal/nnet; never
// on higher layers.
package l2encode

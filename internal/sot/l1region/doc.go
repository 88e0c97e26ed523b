// Package l1region owns Layer 1 (Region) of the tracking data model.
//
// Responsibilities: cropping raw frame point clouds around a reference box,
// farthest-point sampling down to the fixed capacity, and padding up to it.
// This layer produces the fixed-shape template and search-region point sets
// consumed by L2 (Encode).
//
// Dependency rule: L1 depends only on internal/sot; never on higher layers.
package l1region

// Package l5context owns Layer 5 (Context) of the tracking data model.
//
// Responsibilities: pooling the search region's background points into a
// bounded number of summary tokens, keyed by azimuthal sector around the
// crop origin. The tokens join the matcher's key/value sequence so it can
// discriminate target from clutter instead of matching against a
// pre-denoised set. Empty sectors produce masked tokens.
//
// Dependency rule: L5 depends on L1-L4, internal/sot, and internal/nnet;
// never on higher layers.
package l5context

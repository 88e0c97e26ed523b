// Package l4boxaware owns Layer 4 (BoxAware) of the tracking data model.
//
// Responsibilities: conditioning search-region features on the template box
// geometry. Each point gets a learned projection of its distances to the
// expected box corners added to its feature, and an analytic relevance
// weight in [0,1] that down-weights points whose placement or local extent
// is inconsistent with the target's box before matching sees them.
//
// Dependency rule: L4 depends on L1-L3, internal/sot, and internal/nnet;
// never on higher layers.
package l4boxaware

// Package l3motion owns Layer 3 (Motion) of the tracking data model.
//
// Responsibilities: estimating the frame-to-frame displacement between the
// template and the fresh search region, capping it at the crop margin, and
// re-centering the search coordinates so cross-set matching is not confused
// by large temporal variation. The estimate runs on raw geometry before
// encoding; downstream layers see motion-aligned point sets.
//
// Dependency rule: L3 depends on L1-L2 and internal/sot; never on higher
// layers.
package l3motion

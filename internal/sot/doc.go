// Package sot holds the shared data model for single-object point-cloud
// tracking: points, fixed-capacity point sets, 7-DOF boxes, and the error
// kinds the layer packages report.
//
// Layer packages live under internal/sot/lN*; each may depend on this
// package, on internal/nnet, and on lower layers only.
package sot

// Package nnet provides the dense numeric primitives the tracking layers
// share: linear maps, layer normalisation, masked softmax and attention,
// masked pooling, and the parameter registry with its checkpoint source.
//
// Everything operates on gonum dense matrices with row-per-point layout.
// Masks are explicit: a false slot must end up with exactly zero weight in
// any reduction, never a small epsilon. Parameters live in a ParamSet and
// nowhere else, so a whole model can be checked for shape compatibility and
// loaded from one source before the first frame runs.
package nnet

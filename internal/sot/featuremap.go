package sot

import (
	"gonum.org/v1/gonum/mat"
)

// FeatureMap carries one embedding row per point-set slot. Rows are aligned
// by index to a PointSet; rows whose Valid flag is false belong to padding
// slots and must hold zero weight in every reduction. Ownership is transient
// within one frame's processing.
type FeatureMap struct {
	Vectors *mat.Dense
	Valid   []bool
}

// Dims returns (rows, feature width).
func (f FeatureMap) Dims() (int, int) {
	if f.Vectors == nil {
		return 0, 0
	}
	return f.Vectors.Dims()
}

// CheckShape verifies the map holds exactly n rows of width d and that the
// validity mask is index-aligned. It returns a ShapeError describing the
// mismatch otherwise.
func (f FeatureMap) CheckShape(context string, n, d int) error {
	rows, cols := f.Dims()
	if rows != n || cols != d {
		return &ShapeError{Context: context, Got: [2]int{rows, cols}, Want: [2]int{n, d}}
	}
	if len(f.Valid) != n {
		return &ShapeError{Context: context + " validity mask", Got: [2]int{len(f.Valid), 1}, Want: [2]int{n, 1}}
	}
	return nil
}

package nnet

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaskedMaxPool reduces an n×d matrix to a 1×d row holding the per-column
// maximum over valid rows. Padded rows cannot influence the result no matter
// what values they hold. With no valid row the result is all zero.
func MaskedMaxPool(x *mat.Dense, valid []bool) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(1, cols, nil)
	any := false
	for j := 0; j < cols; j++ {
		maxv := math.Inf(-1)
		for i := 0; i < rows; i++ {
			if valid != nil && !valid[i] {
				continue
			}
			if v := x.At(i, j); v > maxv {
				maxv = v
			}
		}
		if !math.IsInf(maxv, -1) {
			out.Set(0, j, maxv)
			any = true
		}
	}
	if !any {
		return mat.NewDense(1, cols, nil)
	}
	return out
}

// MaskedMeanPool reduces an n×d matrix to a 1×d row holding the per-column
// mean over valid rows, zero when no row is valid.
func MaskedMeanPool(x *mat.Dense, valid []bool) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(1, cols, nil)
	n := 0
	for i := 0; i < rows; i++ {
		if valid != nil && !valid[i] {
			continue
		}
		n++
		for j := 0; j < cols; j++ {
			out.Set(0, j, out.At(0, j)+x.At(i, j))
		}
	}
	if n == 0 {
		return out
	}
	inv := 1 / float64(n)
	for j := 0; j < cols; j++ {
		out.Set(0, j, out.At(0, j)*inv)
	}
	return out
}

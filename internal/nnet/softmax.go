package nnet

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaskedSoftmaxRows normalises each row of logits over the columns whose
// keyValid flag is true. Masked columns receive exactly zero, not a small
// residual, so padded slots carry no attention mass. Rows whose queryValid
// flag is false, and rows with no valid column at all, come back as all-zero
// rows rather than NaN. Either mask may be nil.
func MaskedSoftmaxRows(logits *mat.Dense, queryValid, keyValid []bool) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		if queryValid != nil && !queryValid[i] {
			continue
		}
		maxv := math.Inf(-1)
		for j := 0; j < cols; j++ {
			if keyValid != nil && !keyValid[j] {
				continue
			}
			if v := logits.At(i, j); v > maxv {
				maxv = v
			}
		}
		if math.IsInf(maxv, -1) {
			continue
		}
		var sum float64
		for j := 0; j < cols; j++ {
			if keyValid != nil && !keyValid[j] {
				continue
			}
			e := math.Exp(logits.At(i, j) - maxv)
			out.Set(i, j, e)
			sum += e
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < cols; j++ {
			if v := out.At(i, j); v != 0 {
				out.Set(i, j, v/sum)
			}
		}
	}
	return out
}

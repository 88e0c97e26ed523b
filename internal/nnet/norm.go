package nnet

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// layerNormEpsilon keeps the variance denominator away from zero for rows
// that are numerically constant.
const layerNormEpsilon = 1e-5

// LayerNorm normalises each valid row of its input to zero mean and unit
// variance, then applies the learned per-feature gain and shift. Padded rows
// stay exactly zero.
type LayerNorm struct {
	Gamma *mat.Dense // 1×dim
	Beta  *mat.Dense // 1×dim
}

// NewLayerNorm registers the gain (ones) and shift (zeros) under name.gamma
// and name.beta.
func NewLayerNorm(ps *ParamSet, name string, dim int) *LayerNorm {
	return &LayerNorm{
		Gamma: ps.Ones(name+".gamma", 1, dim),
		Beta:  ps.Zeros(name+".beta", 1, dim),
	}
}

// Apply normalises x row-wise. valid may be nil to treat every row as real.
func (ln *LayerNorm) Apply(x *mat.Dense, valid []bool) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		if valid != nil && !valid[i] {
			continue
		}
		var sum float64
		for j := 0; j < cols; j++ {
			sum += x.At(i, j)
		}
		mean := sum / float64(cols)
		var variance float64
		for j := 0; j < cols; j++ {
			d := x.At(i, j) - mean
			variance += d * d
		}
		variance /= float64(cols)
		invStd := 1 / math.Sqrt(variance+layerNormEpsilon)
		for j := 0; j < cols; j++ {
			norm := (x.At(i, j) - mean) * invStd
			out.Set(i, j, norm*ln.Gamma.At(0, j)+ln.Beta.At(0, j))
		}
	}
	return out
}

package nnet

import (
	"gonum.org/v1/gonum/mat"
)

// Linear is an affine map y = xWᵀ + b applied independently to every row of
// its input. W is out×in, b is 1×out.
type Linear struct {
	W *mat.Dense
	B *mat.Dense
}

// NewLinear registers the layer's weight and bias in ps under name.weight
// and name.bias.
func NewLinear(ps *ParamSet, name string, in, out int) *Linear {
	return &Linear{
		W: ps.Xavier(name+".weight", out, in),
		B: ps.Zeros(name+".bias", 1, out),
	}
}

// NewZeroLinear registers a zero-initialised layer. Residual correction
// heads start inert this way: until a checkpoint overwrites them they add
// nothing to the analytic pathway they refine.
func NewZeroLinear(ps *ParamSet, name string, in, out int) *Linear {
	return &Linear{
		W: ps.Zeros(name+".weight", out, in),
		B: ps.Zeros(name+".bias", 1, out),
	}
}

// Apply maps an n×in matrix to n×out.
func (l *Linear) Apply(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.W.T())
	rows, cols := y.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			y.Set(i, j, y.At(i, j)+l.B.At(0, j))
		}
	}
	return &y
}

// ReLUInPlace clamps every negative entry of m to zero.
func ReLUInPlace(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, m)
}

// ZeroInvalidRows clears the rows of m whose valid flag is false, restoring
// the padding invariant after an affine map added its bias everywhere.
func ZeroInvalidRows(m *mat.Dense, valid []bool) {
	_, cols := m.Dims()
	for i, ok := range valid {
		if ok {
			continue
		}
		for j := 0; j < cols; j++ {
			m.Set(i, j, 0)
		}
	}
}

package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLinearApply(t *testing.T) {
	t.Parallel()

	ps := NewParamSet(1)
	l := NewLinear(ps, "t", 2, 2)
	l.W.SetRow(0, []float64{1, 2})
	l.W.SetRow(1, []float64{3, 4})
	l.B.SetRow(0, []float64{5, 6})

	x := mat.NewDense(2, 2, []float64{
		1, 1,
		0, 2,
	})
	y := l.Apply(x)

	// y = xWᵀ + b, row by row.
	assert.Equal(t, 8.0, y.At(0, 0))
	assert.Equal(t, 13.0, y.At(0, 1))
	assert.Equal(t, 9.0, y.At(1, 0))
	assert.Equal(t, 14.0, y.At(1, 1))
}

func TestLinearRegistersParams(t *testing.T) {
	t.Parallel()

	ps := NewParamSet(1)
	NewLinear(ps, "proj", 3, 5)

	w, ok := ps.Get("proj.weight")
	require.True(t, ok)
	rows, cols := w.Dims()
	assert.Equal(t, [2]int{5, 3}, [2]int{rows, cols}, "weight is out×in")

	b, ok := ps.Get("proj.bias")
	require.True(t, ok)
	rows, cols = b.Dims()
	assert.Equal(t, [2]int{1, 5}, [2]int{rows, cols})
}

func TestZeroLinearStartsInert(t *testing.T) {
	t.Parallel()

	ps := NewParamSet(1)
	l := NewZeroLinear(ps, "residual", 3, 2)

	x := mat.NewDense(1, 3, []float64{4, -2, 7})
	y := l.Apply(x)
	assert.Equal(t, 0.0, y.At(0, 0))
	assert.Equal(t, 0.0, y.At(0, 1))
}

func TestReLUInPlace(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(1, 4, []float64{-1, 0, 2, -0.5})
	ReLUInPlace(m)
	assert.Equal(t, []float64{0, 0, 2, 0}, m.RawRowView(0))
}

func TestZeroInvalidRows(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	ZeroInvalidRows(m, []bool{true, false, true})

	assert.Equal(t, []float64{1, 2}, m.RawRowView(0))
	assert.Equal(t, []float64{0, 0}, m.RawRowView(1))
	assert.Equal(t, []float64{5, 6}, m.RawRowView(2))
}

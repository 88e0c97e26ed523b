package l4boxaware

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l2encode"
)

func mustSet(t *testing.T, pts []sot.Point, capacity int) sot.PointSet {
	t.Helper()
	set, err := sot.BuildPointSet(pts, capacity)
	require.NoError(t, err)
	return set
}

// inertEnhancer zeroes the learned projection so the fused features equal
// the encoder features exactly, leaving only the analytic gate observable.
func inertEnhancer(t *testing.T) *Enhancer {
	t.Helper()
	ps := nnet.NewParamSet(17)
	e := New(ps, 8)
	w, ok := ps.Get("boxaware.proj.weight")
	require.True(t, ok)
	w.Zero()
	return e
}

func fixedFeatures(n int) *mat.Dense {
	m := mat.NewDense(n, 8, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 8; j++ {
			m.Set(i, j, 0.1*float64(i+1)*float64(j+1)-0.3)
		}
	}
	return m
}

func cubeTemplate() sot.Template {
	return sot.Template{Box: sot.Box{Length: 2, Width: 2, Height: 2}}
}

func TestEnhanceShapeMismatch(t *testing.T) {
	t.Parallel()

	e := inertEnhancer(t)
	region := sot.SearchRegion{Set: mustSet(t, []sot.Point{{X: 0.1}, {X: 0.2}}, 4)}
	enc := l2encode.Encoding{Features: fixedFeatures(3), Valid: make([]bool, 3)}

	_, _, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
	require.Error(t, err)
	assert.True(t, sot.IsShapeError(err))
}

func TestEnhanceInsideBoxPassesThrough(t *testing.T) {
	t.Parallel()

	e := inertEnhancer(t)
	set := mustSet(t, []sot.Point{{X: 0.3}, {X: -0.4, Y: 0.2}}, 2)
	region := sot.SearchRegion{Set: set, Margin: 1.5}
	features := fixedFeatures(2)
	enc := l2encode.Encoding{Features: features, Valid: set.Valid}

	fm, rel, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
	require.NoError(t, err)

	// Points inside the expected box have zero excess, so the gate opens
	// fully and the features pass through untouched.
	assert.Equal(t, []float64{1, 1}, rel)
	for i := 0; i < 2; i++ {
		for j := 0; j < 8; j++ {
			assert.Equal(t, features.At(i, j), fm.Vectors.At(i, j), "row %d col %d", i, j)
		}
	}
	assert.Equal(t, set.Valid, fm.Valid)
}

func TestEnhanceRelevanceDecaysWithExcess(t *testing.T) {
	t.Parallel()

	e := inertEnhancer(t)
	set := mustSet(t, []sot.Point{{X: 0.3}, {X: 1.5}}, 2)
	region := sot.SearchRegion{Set: set, Margin: 1.5}
	enc := l2encode.Encoding{Features: fixedFeatures(2), Valid: set.Valid}

	_, rel, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
	require.NoError(t, err)

	// 0.5 m outside the 2 m cube's face: fit = exp(-(0.5/0.5)²).
	assert.Equal(t, 1.0, rel[0])
	assert.Equal(t, math.Exp(-1), rel[1])
}

func TestEnhanceSuppressesDistractorWithFloor(t *testing.T) {
	t.Parallel()

	e := inertEnhancer(t)
	set := mustSet(t, []sot.Point{{X: 0.3}, {X: 3}}, 2)
	region := sot.SearchRegion{Set: set, Margin: 2.5}
	features := fixedFeatures(2)
	enc := l2encode.Encoding{Features: features, Valid: set.Valid}

	fm, rel, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, rel[0])
	assert.Less(t, rel[1], 1e-6, "2 m outside the box is near-fully suppressed")

	// The gate floor keeps a quarter of the suppressed features alive.
	for j := 0; j < 8; j++ {
		assert.InDelta(t, 0.25*features.At(1, j), fm.Vectors.At(1, j), 1e-5, "col %d", j)
	}
}

func TestEnhanceExtentConsistency(t *testing.T) {
	t.Parallel()

	e := inertEnhancer(t)
	tmpl := sot.Template{
		Set: mustSet(t, []sot.Point{{}, {X: 1}}, 2),
		Box: sot.Box{Length: 12, Width: 2, Height: 2},
	}
	tmplEnc := l2encode.Encoding{Neighbors: [][]int{{1}, {0}}}

	// Region surface four times sparser than the template surface: the
	// extent ratio is 4, folded to 1/4, penalised as sqrt(1/4).
	sparse := mustSet(t, []sot.Point{{}, {X: 4}}, 2)
	enc := l2encode.Encoding{Features: fixedFeatures(2), Valid: sparse.Valid, Neighbors: [][]int{{1}, {0}}}
	_, rel, err := e.Enhance(sot.SearchRegion{Set: sparse}, enc, tmpl, tmplEnc)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, rel)

	// Four times denser scores the same: the ratio is folded into (0,1].
	dense := mustSet(t, []sot.Point{{}, {X: 0.25}}, 2)
	enc = l2encode.Encoding{Features: fixedFeatures(2), Valid: dense.Valid, Neighbors: [][]int{{1}, {0}}}
	_, rel, err = e.Enhance(sot.SearchRegion{Set: dense}, enc, tmpl, tmplEnc)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, rel)
}

func TestEnhancePaddingStaysZero(t *testing.T) {
	t.Parallel()

	// Non-zero bias: the affine map writes it into every row, padding
	// included, and the enhancer must erase it again.
	ps := nnet.NewParamSet(17)
	e := New(ps, 8)
	b, ok := ps.Get("boxaware.proj.bias")
	require.True(t, ok)
	for j := 0; j < 8; j++ {
		b.Set(0, j, 0.5)
	}
	set := mustSet(t, []sot.Point{{X: 0.3}, {X: -0.2}}, 4)
	region := sot.SearchRegion{Set: set, Margin: 1.5}
	features := fixedFeatures(4)
	for j := 0; j < 8; j++ {
		features.Set(2, j, 1e9)
		features.Set(3, j, -1e9)
	}
	enc := l2encode.Encoding{Features: features, Valid: set.Valid}

	fm, rel, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
	require.NoError(t, err)

	for _, i := range []int{2, 3} {
		assert.Equal(t, 0.0, rel[i], "padding relevance %d", i)
		for j := 0; j < 8; j++ {
			assert.Equal(t, 0.0, fm.Vectors.At(i, j), "padding row %d col %d", i, j)
		}
	}
}

func TestEnhanceDeterministic(t *testing.T) {
	t.Parallel()

	set := mustSet(t, []sot.Point{{X: 0.3}, {X: 1.2}}, 2)
	region := sot.SearchRegion{Set: set, Margin: 1.5}

	run := func() *mat.Dense {
		e := New(nnet.NewParamSet(17), 8)
		enc := l2encode.Encoding{Features: fixedFeatures(2), Valid: set.Valid}
		fm, _, err := e.Enhance(region, enc, cubeTemplate(), l2encode.Encoding{})
		require.NoError(t, err)
		return fm.Vectors
	}

	assert.True(t, mat.Equal(run(), run()))
}

package l1region

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/testutil"
)

func TestCropTemplateLocalFrame(t *testing.T) {
	t.Parallel()

	box := sot.Box{CenterX: 5, CenterY: -2, CenterZ: 1, Length: 2, Width: 2, Height: 2, HeadingRad: math.Pi / 2}
	cloud := []sot.Point{
		{X: 5, Y: -2, Z: 1},   // centre → local origin
		{X: 5, Y: -1.2, Z: 1}, // +0.8 world Y → local +X under the 90° heading
		{X: 50, Y: 50, Z: 50}, // far outside
	}

	tmpl, err := CropTemplate(cloud, box, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, box, tmpl.Box)
	assert.Equal(t, 2, tmpl.Set.ValidCount(), "outside point must not survive the crop")

	got := tmpl.Set.ValidPoints()
	assert.InDelta(t, 0, got[0].X, 1e-12)
	assert.InDelta(t, 0, got[0].Y, 1e-12)
	assert.InDelta(t, 0, got[0].Z, 1e-12)
	assert.InDelta(t, 0.8, got[1].X, 1e-12)
	assert.InDelta(t, 0, got[1].Y, 1e-12)
}

func TestCropMarginGrowsRegion(t *testing.T) {
	t.Parallel()

	box := testutil.AxisBox(0, 0, 0, 2, 2, 2)
	edge := []sot.Point{{X: 1.4}}

	_, err := CropTemplate(edge, box, 0, 4)
	require.ErrorIs(t, err, sot.ErrEmptyCrop, "0.4 beyond the face misses a zero-margin crop")

	tmpl, err := CropTemplate(edge, box, 0.5, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Set.ValidCount())
}

func TestCropSearchCarriesRef(t *testing.T) {
	t.Parallel()

	prior := testutil.AxisBox(3, 4, 0, 2, 2, 2)
	cloud := testutil.CubeCloud(prior, 0.5)

	region, err := CropSearch(cloud, prior, 1.5, 256)
	require.NoError(t, err)
	assert.Equal(t, prior, region.Ref)
	assert.Equal(t, 1.5, region.Margin)
	assert.Equal(t, len(cloud), region.Set.ValidCount())
	assert.Equal(t, 256, region.Set.Capacity())
}

func TestCropEmptyCloud(t *testing.T) {
	t.Parallel()

	box := testutil.AxisBox(0, 0, 0, 2, 2, 2)

	_, err := CropTemplate(nil, box, 0.25, 16)
	assert.ErrorIs(t, err, sot.ErrEmptyCrop)

	_, err = CropSearch(nil, box, 2, 16)
	assert.ErrorIs(t, err, sot.ErrEmptyCrop)
}

func TestCropDownsamplesToCapacity(t *testing.T) {
	t.Parallel()

	box := testutil.AxisBox(0, 0, 0, 4, 4, 4)
	cloud := testutil.CubeCloud(box, 0.5) // 9^3 = 729 points

	tmpl, err := CropTemplate(cloud, box, 0.25, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, tmpl.Set.Capacity())
	assert.Equal(t, 64, tmpl.Set.ValidCount(), "oversized crops fill every slot")
}

func TestFarthestPointSampleDeterministic(t *testing.T) {
	t.Parallel()

	box := testutil.AxisBox(0, 0, 0, 4, 4, 4)
	cloud := testutil.CubeCloud(box, 0.5)

	a := FarthestPointSample(cloud, 32)
	b := FarthestPointSample(cloud, 32)
	assert.Equal(t, a, b, "the same input must sample identically")
}

func TestFarthestPointSampleCoverage(t *testing.T) {
	t.Parallel()

	// Two clusters far apart: any spread-preserving sample of 2+ points must
	// take from both, where truncation would only see the first cluster.
	near := testutil.CubeCloud(testutil.AxisBox(0, 0, 0, 1, 1, 1), 0.5)
	far := testutil.ShiftCloud(near, 100, 0, 0)
	cloud := testutil.MergeClouds(near, far)

	sample := FarthestPointSample(cloud, 8)
	require.Len(t, sample, 8)

	var sawNear, sawFar bool
	for _, p := range sample {
		if p.X < 50 {
			sawNear = true
		} else {
			sawFar = true
		}
	}
	assert.True(t, sawNear, "sample must keep the near cluster")
	assert.True(t, sawFar, "sample must keep the far cluster")
}

func TestFarthestPointSampleSeedNearOrigin(t *testing.T) {
	t.Parallel()

	pts := []sot.Point{
		{X: 5, Y: 5, Z: 5},
		{X: 0.1, Y: 0, Z: 0},
		{X: -4, Y: 4, Z: 0},
	}
	sample := FarthestPointSample(pts, 2)
	require.Len(t, sample, 2)
	assert.Equal(t, pts[1], sample[0], "the seed is the point nearest the origin")
}

func TestFarthestPointSampleShortInput(t *testing.T) {
	t.Parallel()

	pts := []sot.Point{{X: 1}, {X: 2}}
	sample := FarthestPointSample(pts, 10)
	assert.Equal(t, pts, sample)

	// The copy must not alias the input.
	sample[0].X = 99
	assert.Equal(t, 1.0, pts[0].X)
}

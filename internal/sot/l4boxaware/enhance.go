package l4boxaware

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l2encode"
)

const (
	// excessScale sets how quickly relevance decays as a point leaves the
	// expected box, in metres.
	excessScale = 0.5

	// gateFloor keeps a fraction of every feature alive through the
	// relevance gate so matching can still recover from a wrong analytic
	// score.
	gateFloor = 0.25
)

// Enhancer fuses template-box geometry into search features.
type Enhancer struct {
	proj *nnet.Linear
	dim  int
}

// New registers the box-relation projection in ps under "boxaware.proj".
func New(ps *nnet.ParamSet, featureDim int) *Enhancer {
	return &Enhancer{
		proj: nnet.NewLinear(ps, "boxaware.proj", 9, featureDim),
		dim:  featureDim,
	}
}

// Enhance conditions the motion-aligned region's features on the template
// box. It returns the gated feature map and the per-slot relevance weights
// (zero for padding). The region must already be motion aligned, so the
// expected box sits at the local origin with the template's extents.
func (e *Enhancer) Enhance(region sot.SearchRegion, enc l2encode.Encoding, tmpl sot.Template, tmplEnc l2encode.Encoding) (sot.FeatureMap, []float64, error) {
	n := len(region.Set.Points)
	if err := enc.Map().CheckShape("box-aware input", n, e.dim); err != nil {
		return sot.FeatureMap{}, nil, err
	}

	expected := sot.Box{
		Length:     tmpl.Box.Length,
		Width:      tmpl.Box.Width,
		Height:     tmpl.Box.Height,
		HeadingRad: 0,
	}

	// Learned path: distances to the expected box corners and centre,
	// projected into feature space.
	relation := mat.NewDense(n, 9, nil)
	for i, p := range region.Set.Points {
		if !region.Set.Valid[i] {
			continue
		}
		d := expected.CornerDistances(p)
		for j, v := range d {
			relation.Set(i, j, v)
		}
	}
	projected := e.proj.Apply(relation)
	nnet.ZeroInvalidRows(projected, region.Set.Valid)

	var fused mat.Dense
	fused.Add(enc.Features, projected)

	// Analytic path: placement fit times local-extent consistency.
	refExtent := meanNeighborDistance(tmpl.Set, tmplEnc.Neighbors)
	relevance := make([]float64, n)
	for i, p := range region.Set.Points {
		if !region.Set.Valid[i] {
			continue
		}
		excess := expected.Excess(p)
		fit := math.Exp(-(excess / excessScale) * (excess / excessScale))

		consistency := 1.0
		if refExtent > 0 {
			ext := neighborDistance(region.Set, enc.Neighbors, i)
			if ext > 0 {
				r := ext / refExtent
				if r > 1 {
					r = 1 / r
				}
				consistency = math.Sqrt(r)
			}
		}
		relevance[i] = fit * consistency
	}

	// Gate the fused features by relevance, with a floor so suppressed
	// points are attenuated rather than erased.
	gated := mat.NewDense(n, e.dim, nil)
	for i := 0; i < n; i++ {
		if !region.Set.Valid[i] {
			continue
		}
		g := gateFloor + (1-gateFloor)*relevance[i]
		for j := 0; j < e.dim; j++ {
			gated.Set(i, j, fused.At(i, j)*g)
		}
	}

	valid := make([]bool, n)
	copy(valid, region.Set.Valid)
	return sot.FeatureMap{Vectors: gated, Valid: valid}, relevance, nil
}

// meanNeighborDistance averages the neighbor distance across every valid
// slot of a set, giving the reference local point spacing of the target
// surface.
func meanNeighborDistance(set sot.PointSet, neighbors [][]int) float64 {
	var sum float64
	var count int
	for i := range set.Points {
		if !set.Valid[i] {
			continue
		}
		if d := neighborDistance(set, neighbors, i); d > 0 {
			sum += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// neighborDistance is the mean distance from slot i to its recorded
// neighbors, zero when it has none.
func neighborDistance(set sot.PointSet, neighbors [][]int, i int) float64 {
	if i >= len(neighbors) || len(neighbors[i]) == 0 {
		return 0
	}
	pi := set.Points[i]
	var sum float64
	for _, j := range neighbors[i] {
		pj := set.Points[j]
		dx := pj.X - pi.X
		dy := pj.Y - pi.Y
		dz := pj.Z - pi.Z
		sum += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return sum / float64(len(neighbors[i]))
}

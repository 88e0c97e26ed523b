package l2encode

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
)

// Config holds the encoder's shape parameters.
type Config struct {
	FeatureDim int // embedding width D
	Neighbors  int // k for local edge features
}

// Encoding is the encoder output for one point set: per-point embeddings
// (one row per slot, zero rows for padding), the pooled set descriptor, the
// validity mask, and the neighbor table reused by the box-aware layer.
type Encoding struct {
	Features  *mat.Dense // n×D
	Pooled    *mat.Dense // 1×D
	Valid     []bool
	Neighbors [][]int // per slot: indices of its valid neighbors, nil for padding
}

// Map views the per-point embeddings as a shared FeatureMap.
func (e Encoding) Map() sot.FeatureMap {
	return sot.FeatureMap{Vectors: e.Features, Valid: e.Valid}
}

// Encoder lifts raw points to embeddings with a shared point MLP and one
// edge-convolution step: each point's feature is refined by the max over an
// MLP of [own feature ‖ neighbor feature ‖ neighbor offset] across its k
// nearest valid neighbors.
type Encoder struct {
	cfg  Config
	lift *nnet.Linear
	edge *nnet.Linear
	norm *nnet.LayerNorm
}

// New registers the encoder parameters in ps under the "encoder." prefix.
func New(ps *nnet.ParamSet, cfg Config) (*Encoder, error) {
	if cfg.FeatureDim < 1 {
		return nil, fmt.Errorf("l2encode: feature dim must be positive, got %d", cfg.FeatureDim)
	}
	if cfg.Neighbors < 1 {
		return nil, fmt.Errorf("l2encode: neighbor count must be positive, got %d", cfg.Neighbors)
	}
	d := cfg.FeatureDim
	return &Encoder{
		cfg:  cfg,
		lift: nnet.NewLinear(ps, "encoder.lift", 4, d),
		edge: nnet.NewLinear(ps, "encoder.edge", 2*d+3, d),
		norm: nnet.NewLayerNorm(ps, "encoder.norm", d),
	}, nil
}

// Encode maps a point set to its Encoding.
func (e *Encoder) Encode(set sot.PointSet) (Encoding, error) {
	n := len(set.Points)
	if len(set.Valid) != n {
		return Encoding{}, &sot.ShapeError{
			Context: "encoder input mask",
			Got:     [2]int{len(set.Valid), 1},
			Want:    [2]int{n, 1},
		}
	}

	// Pointwise lift of (x, y, z, intensity).
	raw := mat.NewDense(n, 4, nil)
	for i, p := range set.Points {
		raw.Set(i, 0, p.X)
		raw.Set(i, 1, p.Y)
		raw.Set(i, 2, p.Z)
		raw.Set(i, 3, p.Intensity)
	}
	lifted := e.lift.Apply(raw)
	nnet.ReLUInPlace(lifted)
	nnet.ZeroInvalidRows(lifted, set.Valid)

	neighbors := nearestNeighbors(set, e.cfg.Neighbors)

	// Edge convolution: one input row per (point, neighbor) pair, then a
	// per-point max over its pair rows.
	d := e.cfg.FeatureDim
	var pairRows int
	for _, nb := range neighbors {
		pairRows += len(nb)
	}
	refined := mat.NewDense(n, d, nil)
	if pairRows > 0 {
		edgeIn := mat.NewDense(pairRows, 2*d+3, nil)
		row := 0
		for i, nb := range neighbors {
			pi := set.Points[i]
			for _, j := range nb {
				pj := set.Points[j]
				for c := 0; c < d; c++ {
					edgeIn.Set(row, c, lifted.At(i, c))
					edgeIn.Set(row, d+c, lifted.At(j, c))
				}
				edgeIn.Set(row, 2*d, pj.X-pi.X)
				edgeIn.Set(row, 2*d+1, pj.Y-pi.Y)
				edgeIn.Set(row, 2*d+2, pj.Z-pi.Z)
				row++
			}
		}
		edgeOut := e.edge.Apply(edgeIn)
		nnet.ReLUInPlace(edgeOut)

		row = 0
		for i, nb := range neighbors {
			if len(nb) == 0 {
				continue
			}
			seg := edgeOut.Slice(row, row+len(nb), 0, d).(*mat.Dense)
			refined.Slice(i, i+1, 0, d).(*mat.Dense).Copy(nnet.MaskedMaxPool(seg, nil))
			row += len(nb)
		}
	}

	// Residual fuse and normalise; padding rows stay zero.
	var fused mat.Dense
	fused.Add(lifted, refined)
	features := e.norm.Apply(&fused, set.Valid)

	valid := make([]bool, n)
	copy(valid, set.Valid)

	return Encoding{
		Features:  features,
		Pooled:    nnet.MaskedMaxPool(features, valid),
		Valid:     valid,
		Neighbors: neighbors,
	}, nil
}

// nearestNeighbors returns, for every valid slot, the indices of its k
// nearest valid neighbors by squared Euclidean distance (ties broken by
// lower index). Padding slots get nil; an isolated single valid point gets
// an empty list.
func nearestNeighbors(set sot.PointSet, k int) [][]int {
	n := len(set.Points)
	out := make([][]int, n)

	type cand struct {
		idx int
		d   float64
	}
	for i := 0; i < n; i++ {
		if !set.Valid[i] {
			continue
		}
		cands := make([]cand, 0, n-1)
		pi := set.Points[i]
		for j := 0; j < n; j++ {
			if j == i || !set.Valid[j] {
				continue
			}
			pj := set.Points[j]
			dx := pj.X - pi.X
			dy := pj.Y - pi.Y
			dz := pj.Z - pi.Z
			cands = append(cands, cand{idx: j, d: dx*dx + dy*dy + dz*dz})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].idx < cands[b].idx
		})
		kk := k
		if kk > len(cands) {
			kk = len(cands)
		}
		nb := make([]int, kk)
		for c := 0; c < kk; c++ {
			nb[c] = cands[c].idx
		}
		out[i] = nb
	}
	return out
}

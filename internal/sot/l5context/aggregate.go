package l5context

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
)

// Config holds the aggregator's tuning.
type Config struct {
	Tokens              int     // context token count, zero disables aggregation
	BackgroundThreshold float64 // relevance below this marks a point as background
}

// Context carries the pooled background tokens. Tokens is nil when the
// configuration requests none; Valid masks sectors that held no background
// points.
type Context struct {
	Tokens *mat.Dense
	Valid  []bool
}

// Aggregator pools background points into context tokens.
type Aggregator struct {
	proj *nnet.Linear
	dim  int
	cfg  Config
}

// New registers the context projection in ps under "context.proj".
func New(ps *nnet.ParamSet, featureDim int, cfg Config) *Aggregator {
	return &Aggregator{
		proj: nnet.NewLinear(ps, "context.proj", featureDim, featureDim),
		dim:  featureDim,
		cfg:  cfg,
	}
}

// Aggregate pools the background points of the motion-aligned region into
// the configured number of tokens. Background membership comes from the
// box-aware relevance weights: anything below the threshold counts as
// context. Features here are the raw encoder features, not the gated ones,
// so clutter keeps its own signature for the matcher to reason about.
func (a *Aggregator) Aggregate(region sot.SearchRegion, features sot.FeatureMap, relevance []float64) (Context, error) {
	n := len(region.Set.Points)
	if err := features.CheckShape("context input", n, a.dim); err != nil {
		return Context{}, err
	}
	if len(relevance) != n {
		return Context{}, &sot.ShapeError{
			Context: "context relevance",
			Got:     [2]int{len(relevance), 1},
			Want:    [2]int{n, 1},
		}
	}
	if a.cfg.Tokens == 0 {
		return Context{}, nil
	}

	k := a.cfg.Tokens
	sectorOf := func(p sot.Point) int {
		s := int((math.Atan2(p.Y, p.X) + math.Pi) / (2 * math.Pi) * float64(k))
		if s >= k {
			s = k - 1
		}
		if s < 0 {
			s = 0
		}
		return s
	}

	// Masked mean per sector over background rows.
	sums := mat.NewDense(k, a.dim, nil)
	counts := make([]int, k)
	for i, p := range region.Set.Points {
		if !region.Set.Valid[i] || relevance[i] >= a.cfg.BackgroundThreshold {
			continue
		}
		s := sectorOf(p)
		counts[s]++
		for j := 0; j < a.dim; j++ {
			sums.Set(s, j, sums.At(s, j)+features.Vectors.At(i, j))
		}
	}

	valid := make([]bool, k)
	for s := 0; s < k; s++ {
		if counts[s] == 0 {
			continue
		}
		valid[s] = true
		inv := 1 / float64(counts[s])
		for j := 0; j < a.dim; j++ {
			sums.Set(s, j, sums.At(s, j)*inv)
		}
	}

	tokens := a.proj.Apply(sums)
	nnet.ZeroInvalidRows(tokens, valid)
	return Context{Tokens: tokens, Valid: valid}, nil
}

package l6match

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l5context"
)

// Config holds the matcher's shape and prior parameters.
type Config struct {
	FeatureDim int
	Heads      int

	// BiasSigma is the width (metres) of the geometric proximity prior
	// added to the attention logits for template keys. Correspondence must
	// stay useful before any checkpoint is trained, so the learned score is
	// anchored to point geometry: pairs further apart than a few sigma are
	// effectively excluded from matching.
	BiasSigma float64
}

// Match is the matcher output over the search region. Correspond row i is
// the attention-expected template-local coordinate for search point i;
// TemplateMass[i] is the share of that point's attention that landed on real
// template points rather than context tokens. Padded slots hold zero rows
// and zero mass.
type Match struct {
	Fused        sot.FeatureMap
	Correspond   *mat.Dense // n×3
	TemplateMass []float64
}

// Matcher is one cross-attention block with a position-wise feed-forward
// tail, both with residual connections and layer normalisation.
type Matcher struct {
	attn  *nnet.CrossAttention
	norm1 *nnet.LayerNorm
	norm2 *nnet.LayerNorm
	ff1   *nnet.Linear
	ff2   *nnet.Linear
	dim   int
	sigma float64
}

// New registers the matcher parameters in ps under the "matcher." prefix.
func New(ps *nnet.ParamSet, cfg Config) (*Matcher, error) {
	attn, err := nnet.NewCrossAttention(ps, "matcher.attn", cfg.FeatureDim, cfg.Heads)
	if err != nil {
		return nil, err
	}
	d := cfg.FeatureDim
	return &Matcher{
		attn:  attn,
		norm1: nnet.NewLayerNorm(ps, "matcher.norm1", d),
		norm2: nnet.NewLayerNorm(ps, "matcher.norm2", d),
		ff1:   nnet.NewLinear(ps, "matcher.ff1", d, 2*d),
		ff2:   nnet.NewLinear(ps, "matcher.ff2", 2*d, d),
		dim:   d,
		sigma: cfg.BiasSigma,
	}, nil
}

// Match attends the search features onto the template features plus context
// tokens. region supplies the (motion-compensated) search coordinates for
// the proximity prior; tmpl supplies the template-local coordinates the
// correspondence output is expressed in.
func (m *Matcher) Match(region sot.SearchRegion, search sot.FeatureMap, tmpl sot.Template, tmplFeat sot.FeatureMap, ctx l5context.Context) (Match, error) {
	ns, _ := search.Dims()
	if err := search.CheckShape("matcher search features", ns, m.dim); err != nil {
		return Match{}, err
	}
	if len(region.Set.Points) != ns {
		return Match{}, &sot.ShapeError{
			Context: "matcher search points",
			Got:     [2]int{len(region.Set.Points), 3},
			Want:    [2]int{ns, 3},
		}
	}
	nt := len(tmpl.Set.Points)
	if err := tmplFeat.CheckShape("matcher template features", nt, m.dim); err != nil {
		return Match{}, err
	}

	// Assemble keys/values: template rows first, context tokens after.
	nk := nt
	if ctx.Tokens != nil {
		tr, tc := ctx.Tokens.Dims()
		if tc != m.dim {
			return Match{}, &sot.ShapeError{
				Context: "matcher context tokens",
				Got:     [2]int{tr, tc},
				Want:    [2]int{tr, m.dim},
			}
		}
		nk += tr
	}
	kv := mat.NewDense(nk, m.dim, nil)
	kv.Slice(0, nt, 0, m.dim).(*mat.Dense).Copy(tmplFeat.Vectors)
	kvValid := make([]bool, nk)
	copy(kvValid, tmplFeat.Valid)
	if ctx.Tokens != nil {
		tr, _ := ctx.Tokens.Dims()
		kv.Slice(nt, nt+tr, 0, m.dim).(*mat.Dense).Copy(ctx.Tokens)
		copy(kvValid[nt:], ctx.Valid)
	}

	attended, attn := m.attn.Forward(search.Vectors, kv, search.Valid, kvValid, m.proximityBias(region.Set, tmpl.Set, ns, nk))

	// Residual + norm, then feed-forward + norm.
	var h mat.Dense
	h.Add(search.Vectors, attended)
	normed := m.norm1.Apply(&h, search.Valid)

	ffInner := m.ff1.Apply(normed)
	nnet.ReLUInPlace(ffInner)
	ffOut := m.ff2.Apply(ffInner)

	var h2 mat.Dense
	h2.Add(normed, ffOut)
	fused := m.norm2.Apply(&h2, search.Valid)
	nnet.ZeroInvalidRows(fused, search.Valid)

	// Expected template coordinate per search point, renormalised over the
	// template share of the attention row.
	correspond := mat.NewDense(ns, 3, nil)
	mass := make([]float64, ns)
	for i := 0; i < ns; i++ {
		if !search.Valid[i] {
			continue
		}
		var w, cx, cy, cz float64
		for j := 0; j < nt; j++ {
			a := attn.At(i, j)
			if a == 0 {
				continue
			}
			p := tmpl.Set.Points[j]
			w += a
			cx += a * p.X
			cy += a * p.Y
			cz += a * p.Z
		}
		mass[i] = w
		if w > 0 {
			correspond.Set(i, 0, cx/w)
			correspond.Set(i, 1, cy/w)
			correspond.Set(i, 2, cz/w)
		}
	}

	valid := make([]bool, ns)
	copy(valid, search.Valid)
	return Match{
		Fused:        sot.FeatureMap{Vectors: fused, Valid: valid},
		Correspond:   correspond,
		TemplateMass: mass,
	}, nil
}

// proximityBias builds the nq×nk attention prior: -d²/(2σ²) between each
// search point and each template point, zero for context-token columns.
// Both sets live in the same box-local frame after motion compensation, so
// the distance is meaningful directly.
func (m *Matcher) proximityBias(search, tmpl sot.PointSet, nq, nk int) *mat.Dense {
	if m.sigma <= 0 {
		return nil
	}
	inv := 1 / (2 * m.sigma * m.sigma)
	bias := mat.NewDense(nq, nk, nil)
	for i, p := range search.Points {
		if !search.Valid[i] {
			continue
		}
		for j, t := range tmpl.Points {
			if !tmpl.Valid[j] {
				continue
			}
			dx, dy, dz := p.X-t.X, p.Y-t.Y, p.Z-t.Z
			bias.Set(i, j, -(dx*dx+dy*dy+dz*dz)*inv)
		}
	}
	return bias
}

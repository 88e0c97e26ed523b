package nnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossAttention is multi-head scaled dot-product attention from one point
// sequence (queries) onto another (keys/values). Padded query rows produce
// zero output rows; padded key slots receive exactly zero attention mass.
type CrossAttention struct {
	dim     int
	heads   int
	headDim int
	wq      *Linear
	wk      *Linear
	wv      *Linear
	wo      *Linear
}

// NewCrossAttention registers the four projections under name.q/.k/.v/.out.
// The feature width must split evenly across heads.
func NewCrossAttention(ps *ParamSet, name string, dim, heads int) (*CrossAttention, error) {
	if heads <= 0 || dim%heads != 0 {
		return nil, fmt.Errorf("nnet: %s: feature width %d does not split across %d heads", name, dim, heads)
	}
	return &CrossAttention{
		dim:     dim,
		heads:   heads,
		headDim: dim / heads,
		wq:      NewLinear(ps, name+".q", dim, dim),
		wk:      NewLinear(ps, name+".k", dim, dim),
		wv:      NewLinear(ps, name+".v", dim, dim),
		wo:      NewLinear(ps, name+".out", dim, dim),
	}, nil
}

// Forward attends q (nq×dim) onto kv (nk×dim) and returns the attended
// output (nq×dim) plus the head-averaged attention matrix (nq×nk). The
// attention matrix rows sum to one for valid queries and are all-zero for
// padded ones.
//
// bias, when non-nil, is an nq×nk matrix added to the scaled logits of
// every head before the softmax. Callers use it to fold a prior (such as
// geometric proximity) into the attention pattern; it never overrides the
// validity masks.
func (a *CrossAttention) Forward(q, kv *mat.Dense, qValid, kvValid []bool, bias *mat.Dense) (*mat.Dense, *mat.Dense) {
	nq, _ := q.Dims()
	nk, _ := kv.Dims()

	qp := a.wq.Apply(q)
	kp := a.wk.Apply(kv)
	vp := a.wv.Apply(kv)

	scale := 1 / math.Sqrt(float64(a.headDim))
	attended := mat.NewDense(nq, a.dim, nil)
	attnAvg := mat.NewDense(nq, nk, nil)

	for h := 0; h < a.heads; h++ {
		lo, hi := h*a.headDim, (h+1)*a.headDim
		qh := qp.Slice(0, nq, lo, hi).(*mat.Dense)
		kh := kp.Slice(0, nk, lo, hi).(*mat.Dense)
		vh := vp.Slice(0, nk, lo, hi).(*mat.Dense)

		var logits mat.Dense
		logits.Mul(qh, kh.T())
		logits.Scale(scale, &logits)
		if bias != nil {
			logits.Add(&logits, bias)
		}

		attn := MaskedSoftmaxRows(&logits, qValid, kvValid)

		var headOut mat.Dense
		headOut.Mul(attn, vh)
		attended.Slice(0, nq, lo, hi).(*mat.Dense).Copy(&headOut)

		attnAvg.Add(attnAvg, attn)
	}
	attnAvg.Scale(1/float64(a.heads), attnAvg)

	out := a.wo.Apply(attended)
	ZeroInvalidRows(out, qValid)
	return out, attnAvg
}

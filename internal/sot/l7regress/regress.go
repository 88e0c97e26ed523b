package l7regress

import (
	"math"

	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l3motion"
	"github.com/banshee-data/pointtrack/internal/sot/l6match"
)

const (
	// refineIterations is how many gated re-centering passes run after the
	// peak vote seeds the aggregate.
	refineIterations = 3

	// minSupportPoints is the gated inlier count at which the support term
	// of the confidence saturates.
	minSupportPoints = 8

	// pcaEpsilon is the minimum covariance magnitude treated as real
	// orientation evidence rather than noise.
	pcaEpsilon = 1e-9

	// minAnisotropy is the minimum eigenvalue gap, as a fraction of the
	// covariance trace, for the principal axis to count as orientation
	// evidence. Near-square footprints stay at their previous heading
	// instead of chasing sampling noise.
	minAnisotropy = 0.15
)

// Config holds the regression head's tuning.
type Config struct {
	VoteGate        float64 // metres; inlier radius around the vote peak
	SizeEMAAlpha    float64 // per-frame blend toward observed extents
	HeadingEMAAlpha float64 // per-frame blend toward the observed heading delta
	MaxHeadingDelta float64 // radians; clamp on the per-frame heading change
}

// Regressor converts a frame's match output into a world-frame box plus a
// confidence in [0,1]. A zero-initialised correction head rides on top of
// the correspondence votes so a trained checkpoint can refine them; with
// default parameters the head is inert.
type Regressor struct {
	correct *nnet.Linear
	dim     int
	cfg     Config
}

// New registers the regression parameters in ps under the "regress." prefix.
func New(ps *nnet.ParamSet, featureDim int, cfg Config) *Regressor {
	return &Regressor{
		correct: nnet.NewZeroLinear(ps, "regress.correct", featureDim, 3),
		dim:     featureDim,
		cfg:     cfg,
	}
}

// Regress aggregates per-point votes into the predicted box. The region must
// be the motion-aligned one the match ran on; motion carries the alignment
// shift back out so the returned box lands in the world frame.
func (r *Regressor) Regress(region sot.SearchRegion, match l6match.Match, relevance []float64, tmpl sot.Template, motion l3motion.Motion) (sot.Box, float64, error) {
	n := len(region.Set.Points)
	if err := match.Fused.CheckShape("regression features", n, r.dim); err != nil {
		return sot.Box{}, 0, err
	}
	if len(relevance) != n || len(match.TemplateMass) != n {
		return sot.Box{}, 0, &sot.ShapeError{
			Context: "regression weights",
			Got:     [2]int{len(relevance), len(match.TemplateMass)},
			Want:    [2]int{n, n},
		}
	}

	correction := r.correct.Apply(match.Fused.Vectors)

	// Step 1: cast votes. Each real point proposes the box centre as its own
	// aligned position minus its expected template-local coordinate, plus
	// the learned correction.
	votes := make([]sot.Point, n)
	weights := make([]float64, n)
	var totalW float64
	for i, p := range region.Set.Points {
		if !region.Set.Valid[i] {
			continue
		}
		w := relevance[i] * match.TemplateMass[i]
		if w <= 0 {
			continue
		}
		votes[i] = sot.Point{
			X: p.X - match.Correspond.At(i, 0) + correction.At(i, 0),
			Y: p.Y - match.Correspond.At(i, 1) + correction.At(i, 1),
			Z: p.Z - match.Correspond.At(i, 2) + correction.At(i, 2),
		}
		weights[i] = w
		totalW += w
	}
	if totalW <= 0 {
		// Nothing to aggregate: report the prior pose with zero confidence
		// and let the controller's state machine handle the miss.
		fallback := sot.Box{
			Length:     tmpl.Box.Length,
			Width:      tmpl.Box.Width,
			Height:     tmpl.Box.Height,
			HeadingRad: 0,
		}
		return region.ToWorldBox(fallback), 0, nil
	}

	// Step 2: seed at the strongest vote, then refine as the gated weighted
	// mean so a distractor's vote cluster cannot drag the aggregate once the
	// seed lands on the target.
	seed := -1
	for i, w := range weights {
		if seed < 0 || w > weights[seed] {
			seed = i
		}
	}
	center := votes[seed]
	gate := r.cfg.VoteGate
	var gatedW float64
	var gatedCount int
	for iter := 0; iter < refineIterations; iter++ {
		var sw, sx, sy, sz float64
		count := 0
		for i, w := range weights {
			if w <= 0 {
				continue
			}
			if sqDist(votes[i], center) > gate*gate {
				continue
			}
			sw += w
			sx += w * votes[i].X
			sy += w * votes[i].Y
			sz += w * votes[i].Z
			count++
		}
		if sw <= 0 {
			break
		}
		center = sot.Point{X: sx / sw, Y: sy / sw, Z: sz / sw}
		gatedW = sw
		gatedCount = count
	}

	// Step 3: confidence from vote agreement and inlier support.
	agreement := gatedW / totalW
	support := float64(gatedCount) / minSupportPoints
	if support > 1 {
		support = 1
	}
	confidence := agreement * support
	if confidence > 1 {
		confidence = 1
	}

	// Step 4: extents. Partial views must not shrink the box, so the per
	// axis blend only grows toward the observed inlier spread.
	length, width, height := r.extents(region, votes, weights, center, tmpl.Box)

	// Step 5: heading delta from the weighted principal axis of the gated
	// inlier points, clamped and smoothed. The template frame defines zero.
	delta := r.headingDelta(region, votes, weights, center)

	local := sot.Box{
		CenterX:    center.X + motion.Dx,
		CenterY:    center.Y + motion.Dy,
		CenterZ:    center.Z + motion.Dz,
		Length:     length,
		Width:      width,
		Height:     height,
		HeadingRad: sot.SmoothHeading(0, delta, r.cfg.HeadingEMAAlpha),
	}
	return region.ToWorldBox(local), confidence, nil
}

// extents grows the template dims toward the spread of the gated inlier
// points, never shrinking them.
func (r *Regressor) extents(region sot.SearchRegion, votes []sot.Point, weights []float64, center sot.Point, prev sot.Box) (length, width, height float64) {
	gate := r.cfg.VoteGate
	minX, maxX := math.MaxFloat64, -math.MaxFloat64
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	minZ, maxZ := math.MaxFloat64, -math.MaxFloat64
	found := false
	for i, w := range weights {
		if w <= 0 || sqDist(votes[i], center) > gate*gate {
			continue
		}
		p := region.Set.Points[i]
		found = true
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		minZ, maxZ = math.Min(minZ, p.Z), math.Max(maxZ, p.Z)
	}
	length, width, height = prev.Length, prev.Width, prev.Height
	if !found {
		return length, width, height
	}
	alpha := r.cfg.SizeEMAAlpha
	if s := maxX - minX; s > length {
		length += alpha * (s - length)
	}
	if s := maxY - minY; s > width {
		width += alpha * (s - width)
	}
	if s := maxZ - minZ; s > height {
		height += alpha * (s - height)
	}
	return length, width, height
}

// headingDelta estimates the object's rotation since the template frame from
// the weighted X-Y covariance of the gated inlier points. A symmetric or
// degenerate spread yields zero: no orientation evidence, no rotation.
func (r *Regressor) headingDelta(region sot.SearchRegion, votes []sot.Point, weights []float64, center sot.Point) float64 {
	gate := r.cfg.VoteGate

	// Weighted centroid of the inlier points.
	var sw, mx, my float64
	for i, w := range weights {
		if w <= 0 || sqDist(votes[i], center) > gate*gate {
			continue
		}
		p := region.Set.Points[i]
		sw += w
		mx += w * p.X
		my += w * p.Y
	}
	if sw <= 0 {
		return 0
	}
	mx /= sw
	my /= sw

	// Weighted 2x2 covariance in the X-Y plane.
	var c00, c01, c11 float64
	for i, w := range weights {
		if w <= 0 || sqDist(votes[i], center) > gate*gate {
			continue
		}
		p := region.Set.Points[i]
		dx := p.X - mx
		dy := p.Y - my
		c00 += w * dx * dx
		c01 += w * dx * dy
		c11 += w * dy * dy
	}
	c00 /= sw
	c01 /= sw
	c11 /= sw

	// Principal eigenvector of the symmetric 2x2 matrix. Near-isotropic
	// covariance carries no heading signal, so require a real eigenvalue
	// gap before extracting an angle.
	trace := c00 + c11
	det := c00*c11 - c01*c01
	disc := trace*trace - 4*det
	if disc < 0 {
		disc = 0
	}
	gap := math.Sqrt(disc)
	if trace <= pcaEpsilon || gap <= minAnisotropy*trace {
		return 0
	}
	lambda1 := (trace + gap) / 2
	var angle float64
	if math.Abs(c01) > pcaEpsilon {
		angle = math.Atan2(lambda1-c00, c01)
	} else if c11 > c00 {
		angle = math.Pi / 2
	}

	// The principal axis is direction-ambiguous; fold the delta into
	// [-π/2, π/2) before clamping to the per-frame budget.
	delta := sot.WrapHeading(angle)
	if delta >= math.Pi/2 {
		delta -= math.Pi
	}
	if delta < -math.Pi/2 {
		delta += math.Pi
	}
	if delta > r.cfg.MaxHeadingDelta {
		delta = r.cfg.MaxHeadingDelta
	}
	if delta < -r.cfg.MaxHeadingDelta {
		delta = -r.cfg.MaxHeadingDelta
	}
	return delta
}

func sqDist(a, b sot.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

package l3motion

import (
	"math"

	"github.com/banshee-data/pointtrack/internal/sot"
)

// Config holds the motion estimator's tuning.
type Config struct {
	PriorSigma float64 // metres; width of the stay-near-prior weighting
}

// Motion is the estimated displacement of the object relative to the prior
// box, expressed in the search region's local frame. DensityRatio compares
// the two sets' real point counts; Capped reports that the raw estimate
// exceeded the crop margin on at least one axis and was clamped to it.
type Motion struct {
	Dx, Dy, Dz   float64
	DensityRatio float64
	Capped       bool
}

// Offset returns the displacement as a point in the region's local frame.
func (m Motion) Offset() sot.Point {
	return sot.Point{X: m.Dx, Y: m.Dy, Z: m.Dz}
}

// Estimate computes the object displacement between tmpl and region. Both
// sets share the prior box origin (template coordinates are box-local,
// search coordinates are prior-box-local), so the shift between the template
// centroid and the prior-weighted search centroid estimates the object's
// motion since the last confident frame. The prior weighting
// exp(-|p|²/2σ²) keeps far clutter from dragging the estimate; when every
// weight underflows the plain centroid stands in. Each component of the
// estimate is clamped to the region's crop margin: a shift larger than the
// margin cannot be real, because such points would have fallen outside the
// crop.
func Estimate(tmpl sot.Template, region sot.SearchRegion, cfg Config) Motion {
	tc, tok := tmpl.Set.Centroid()
	sc, sok := weightedCentroid(region.Set, cfg.PriorSigma)
	if !tok || !sok {
		return Motion{DensityRatio: densityRatio(tmpl.Set, region.Set)}
	}

	dx := sc.X - tc.X
	dy := sc.Y - tc.Y
	dz := sc.Z - tc.Z

	bound := region.Margin
	capped := false
	if c := clamp(dx, bound); c != dx {
		dx, capped = c, true
	}
	if c := clamp(dy, bound); c != dy {
		dy, capped = c, true
	}
	if c := clamp(dz, bound); c != dz {
		dz, capped = c, true
	}

	return Motion{
		Dx:           dx,
		Dy:           dy,
		Dz:           dz,
		DensityRatio: densityRatio(tmpl.Set, region.Set),
		Capped:       capped,
	}
}

// Apply returns a copy of region whose valid coordinates are shifted by the
// negated motion estimate, so the object's points line up with the template
// frame for matching. Padding slots stay zeroed.
func Apply(region sot.SearchRegion, m Motion) sot.SearchRegion {
	out := region
	out.Set = region.Set.Clone()
	for i := range out.Set.Points {
		if !out.Set.Valid[i] {
			continue
		}
		out.Set.Points[i].X -= m.Dx
		out.Set.Points[i].Y -= m.Dy
		out.Set.Points[i].Z -= m.Dz
	}
	return out
}

func weightedCentroid(set sot.PointSet, sigma float64) (sot.Point, bool) {
	var sumW, sx, sy, sz float64
	inv := 1 / (2 * sigma * sigma)
	for i, p := range set.Points {
		if !set.Valid[i] {
			continue
		}
		w := math.Exp(-(p.X*p.X + p.Y*p.Y + p.Z*p.Z) * inv)
		sumW += w
		sx += w * p.X
		sy += w * p.Y
		sz += w * p.Z
	}
	if sumW > 0 {
		return sot.Point{X: sx / sumW, Y: sy / sumW, Z: sz / sumW}, true
	}
	// All weights underflowed: the cloud sits far from the prior. Fall back
	// to the plain centroid and let the margin clamp bound the result.
	return set.Centroid()
}

func densityRatio(tmpl, search sot.PointSet) float64 {
	t := tmpl.ValidCount()
	if t == 0 {
		return 0
	}
	return float64(search.ValidCount()) / float64(t)
}

func clamp(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

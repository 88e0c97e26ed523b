package l1region

import (
	"fmt"
	"math"

	"github.com/banshee-data/pointtrack/internal/sot"
)

// CropTemplate cuts the points inside box expanded by margin metres per
// face, converts them to box-local coordinates, and samples or pads them to
// exactly capacity slots. It returns sot.ErrEmptyCrop (wrapped) when no real
// point falls inside the crop.
func CropTemplate(cloud []sot.Point, box sot.Box, margin float64, capacity int) (sot.Template, error) {
	local := cropLocal(cloud, box, margin)
	if len(local) == 0 {
		return sot.Template{}, fmt.Errorf("template crop: %w", sot.ErrEmptyCrop)
	}
	set, err := toCapacity(local, capacity)
	if err != nil {
		return sot.Template{}, fmt.Errorf("template crop: %w", err)
	}
	return sot.Template{Set: set, Box: box}, nil
}

// CropSearch cuts the points inside prior expanded by margin metres per
// face into a SearchRegion whose coordinates are local to the prior box.
// It returns sot.ErrEmptyCrop (wrapped) when no real point falls inside.
func CropSearch(cloud []sot.Point, prior sot.Box, margin float64, capacity int) (sot.SearchRegion, error) {
	local := cropLocal(cloud, prior, margin)
	if len(local) == 0 {
		return sot.SearchRegion{}, fmt.Errorf("search crop: %w", sot.ErrEmptyCrop)
	}
	set, err := toCapacity(local, capacity)
	if err != nil {
		return sot.SearchRegion{}, fmt.Errorf("search crop: %w", err)
	}
	return sot.SearchRegion{Set: set, Ref: prior, Margin: margin}, nil
}

// cropLocal returns the box-local coordinates of every cloud point that
// falls inside ref expanded by margin metres per face.
func cropLocal(cloud []sot.Point, ref sot.Box, margin float64) []sot.Point {
	hx := ref.Length/2 + margin
	hy := ref.Width/2 + margin
	hz := ref.Height/2 + margin
	var out []sot.Point
	for _, p := range cloud {
		l := ref.ToLocal(p)
		if math.Abs(l.X) <= hx && math.Abs(l.Y) <= hy && math.Abs(l.Z) <= hz {
			out = append(out, l)
		}
	}
	return out
}

// toCapacity downsamples with farthest-point sampling when over capacity and
// pads with flagged placeholder slots when under.
func toCapacity(pts []sot.Point, capacity int) (sot.PointSet, error) {
	if len(pts) > capacity {
		pts = FarthestPointSample(pts, capacity)
	}
	return sot.BuildPointSet(pts, capacity)
}

// FarthestPointSample selects n points spread across the input by greedy
// farthest-point traversal. The seed is the point nearest the local origin
// (ties broken by lowest index), so the selection is deterministic for a
// given input ordering and preserves spatial coverage far better than
// truncation would.
func FarthestPointSample(pts []sot.Point, n int) []sot.Point {
	if n >= len(pts) {
		out := make([]sot.Point, len(pts))
		copy(out, pts)
		return out
	}

	seed := 0
	best := math.MaxFloat64
	for i, p := range pts {
		d := p.X*p.X + p.Y*p.Y + p.Z*p.Z
		if d < best {
			best = d
			seed = i
		}
	}

	selected := make([]sot.Point, 0, n)
	selected = append(selected, pts[seed])

	// minDist[i] tracks the squared distance from pts[i] to the nearest
	// already-selected point.
	minDist := make([]float64, len(pts))
	for i, p := range pts {
		minDist[i] = sqDist(p, pts[seed])
	}

	for len(selected) < n {
		next := -1
		far := -1.0
		for i, d := range minDist {
			if d > far {
				far = d
				next = i
			}
		}
		selected = append(selected, pts[next])
		minDist[next] = -1 // never re-selected
		for i, p := range pts {
			if minDist[i] < 0 {
				continue
			}
			if d := sqDist(p, pts[next]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return selected
}

func sqDist(a, b sot.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

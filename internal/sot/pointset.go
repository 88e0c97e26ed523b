package sot

// Point is a single LiDAR return in a right-handed metric frame.
// Intensity carries the sensor reflectivity when the source provides one,
// zero otherwise.
type Point struct {
	X, Y, Z   float64
	Intensity float64
}

// PointSet is an unordered collection of points padded or sampled to a fixed
// capacity so every downstream stage sees statically shaped inputs. Points
// and Valid are index-aligned; entries with Valid[i] == false are padding and
// must contribute zero weight in any aggregation.
type PointSet struct {
	Points []Point
	Valid  []bool
}

// NewPointSet returns an all-padding set of the given capacity.
func NewPointSet(capacity int) PointSet {
	return PointSet{
		Points: make([]Point, capacity),
		Valid:  make([]bool, capacity),
	}
}

// BuildPointSet copies pts into a set of exactly the given capacity, flagging
// the copied slots valid and the remainder as padding. Callers must sample
// down to capacity first; handing in more points than fit is a shape
// violation, not a request to drop data silently.
func BuildPointSet(pts []Point, capacity int) (PointSet, error) {
	if len(pts) > capacity {
		return PointSet{}, &ShapeError{
			Context: "point set build",
			Got:     [2]int{len(pts), 3},
			Want:    [2]int{capacity, 3},
		}
	}
	set := NewPointSet(capacity)
	copy(set.Points, pts)
	for i := range pts {
		set.Valid[i] = true
	}
	return set, nil
}

// Capacity returns the fixed slot count of the set.
func (s PointSet) Capacity() int { return len(s.Points) }

// ValidCount returns the number of real (non-padding) points.
func (s PointSet) ValidCount() int {
	n := 0
	for _, v := range s.Valid {
		if v {
			n++
		}
	}
	return n
}

// Centroid returns the mean position of the valid points. The second return
// is false when the set holds no real points.
func (s PointSet) Centroid() (Point, bool) {
	var sumX, sumY, sumZ float64
	n := 0
	for i, p := range s.Points {
		if !s.Valid[i] {
			continue
		}
		sumX += p.X
		sumY += p.Y
		sumZ += p.Z
		n++
	}
	if n == 0 {
		return Point{}, false
	}
	nf := float64(n)
	return Point{X: sumX / nf, Y: sumY / nf, Z: sumZ / nf}, true
}

// ValidPoints returns a fresh slice holding only the real points, in slot
// order.
func (s PointSet) ValidPoints() []Point {
	out := make([]Point, 0, len(s.Points))
	for i, p := range s.Points {
		if s.Valid[i] {
			out = append(out, p)
		}
	}
	return out
}

// Clone deep-copies the set so a caller can mutate coordinates without
// aliasing the original backing arrays.
func (s PointSet) Clone() PointSet {
	out := PointSet{
		Points: make([]Point, len(s.Points)),
		Valid:  make([]bool, len(s.Valid)),
	}
	copy(out.Points, s.Points)
	copy(out.Valid, s.Valid)
	return out
}

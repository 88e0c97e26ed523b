package sot

import (
	"math"
)

// Box is a 7-DOF (7 Degrees of Freedom) 3D bounding box.
//
// 7-DOF parameters:
//   - CenterX/Y/Z: volumetric centre position (metres)
//   - Length: box extent along heading direction (metres)
//   - Width: box extent perpendicular to heading (metres)
//   - Height: box extent along Z-axis (metres)
//   - HeadingRad: yaw angle around Z-axis (radians, [-π, π))
type Box struct {
	CenterX    float64
	CenterY    float64
	CenterZ    float64
	Length     float64 // Extent along principal axis
	Width      float64 // Extent perpendicular to principal axis
	Height     float64 // Extent along Z
	HeadingRad float64 // Rotation around Z-axis
}

// WrapHeading normalises a yaw angle to [-π, π).
func WrapHeading(rad float64) float64 {
	for rad >= math.Pi {
		rad -= 2 * math.Pi
	}
	for rad < -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}

// SmoothHeading applies exponential moving average (EMA) smoothing to yaw
// angles, with handling for angular wraparound at ±π. This reduces jitter in
// heading estimates while staying responsive to real rotation.
//
// Parameters:
//   - prev: previous smoothed heading (radians)
//   - next: new raw heading from the current observation (radians)
//   - alpha: smoothing factor [0, 1]. Higher = more responsive.
//
// Returns the smoothed heading in [-π, π).
func SmoothHeading(prev, next, alpha float64) float64 {
	// Shortest angular distance, normalised to [-π, π)
	diff := WrapHeading(next - prev)

	// EMA: smoothed = prev + alpha * (next - prev)
	return WrapHeading(prev + alpha*diff)
}

// Center returns the box centre as a Point.
func (b Box) Center() Point {
	return Point{X: b.CenterX, Y: b.CenterY, Z: b.CenterZ}
}

// ToLocal expresses p in the box frame: origin at the centre, X along the
// heading, Z up. Intensity passes through unchanged.
func (b Box) ToLocal(p Point) Point {
	dx := p.X - b.CenterX
	dy := p.Y - b.CenterY
	cos := math.Cos(b.HeadingRad)
	sin := math.Sin(b.HeadingRad)
	return Point{
		X:         cos*dx + sin*dy,
		Y:         -sin*dx + cos*dy,
		Z:         p.Z - b.CenterZ,
		Intensity: p.Intensity,
	}
}

// ToWorld is the inverse of ToLocal.
func (b Box) ToWorld(p Point) Point {
	cos := math.Cos(b.HeadingRad)
	sin := math.Sin(b.HeadingRad)
	return Point{
		X:         b.CenterX + cos*p.X - sin*p.Y,
		Y:         b.CenterY + sin*p.X + cos*p.Y,
		Z:         b.CenterZ + p.Z,
		Intensity: p.Intensity,
	}
}

// Corners returns the eight box corners in the world frame. Ordering is
// stable: Z-low face first, counter-clockwise from (+L/2, +W/2).
func (b Box) Corners() [8]Point {
	hx := b.Length / 2
	hy := b.Width / 2
	hz := b.Height / 2
	local := [8]Point{
		{X: hx, Y: hy, Z: -hz},
		{X: -hx, Y: hy, Z: -hz},
		{X: -hx, Y: -hy, Z: -hz},
		{X: hx, Y: -hy, Z: -hz},
		{X: hx, Y: hy, Z: hz},
		{X: -hx, Y: hy, Z: hz},
		{X: -hx, Y: -hy, Z: hz},
		{X: hx, Y: -hy, Z: hz},
	}
	var out [8]Point
	for i, c := range local {
		out[i] = b.ToWorld(c)
	}
	return out
}

// Contains reports whether p falls inside the box enlarged by margin metres
// on every face.
func (b Box) Contains(p Point, margin float64) bool {
	l := b.ToLocal(p)
	return math.Abs(l.X) <= b.Length/2+margin &&
		math.Abs(l.Y) <= b.Width/2+margin &&
		math.Abs(l.Z) <= b.Height/2+margin
}

// Excess returns the Euclidean distance from p to the box surface, zero for
// points inside the box.
func (b Box) Excess(p Point) float64 {
	l := b.ToLocal(p)
	ex := math.Max(0, math.Abs(l.X)-b.Length/2)
	ey := math.Max(0, math.Abs(l.Y)-b.Width/2)
	ez := math.Max(0, math.Abs(l.Z)-b.Height/2)
	return math.Sqrt(ex*ex + ey*ey + ez*ez)
}

// CornerDistances returns the distances from p to the eight corners and the
// centre, in Corners() order with the centre distance last.
func (b Box) CornerDistances(p Point) [9]float64 {
	var out [9]float64
	for i, c := range b.Corners() {
		dx := p.X - c.X
		dy := p.Y - c.Y
		dz := p.Z - c.Z
		out[i] = math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	dx := p.X - b.CenterX
	dy := p.Y - b.CenterY
	dz := p.Z - b.CenterZ
	out[8] = math.Sqrt(dx*dx + dy*dy + dz*dz)
	return out
}

// Expanded returns a copy of the box grown by margin metres on every face.
func (b Box) Expanded(margin float64) Box {
	out := b
	out.Length += 2 * margin
	out.Width += 2 * margin
	out.Height += 2 * margin
	return out
}

// Translated returns a copy of the box shifted by (dx, dy, dz) in the world
// frame.
func (b Box) Translated(dx, dy, dz float64) Box {
	out := b
	out.CenterX += dx
	out.CenterY += dy
	out.CenterZ += dz
	return out
}

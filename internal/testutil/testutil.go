// Package testutil provides shared test fixtures for the tracking packages.
//
// This package centralises deterministic point-cloud generators so layer
// tests do not each grow their own copy. Generators are pure functions of
// their arguments: the same box and spacing always produce the same cloud,
// which keeps property tests reproducible without seeding.
package testutil

import "github.com/banshee-data/pointtrack/internal/sot"

// AxisBox returns a heading-zero box centred at (cx, cy, cz).
func AxisBox(cx, cy, cz, length, width, height float64) sot.Box {
	return sot.Box{
		CenterX: cx,
		CenterY: cy,
		CenterZ: cz,
		Length:  length,
		Width:   width,
		Height:  height,
	}
}

// CubeCloud returns a deterministic grid of points filling box, spaced
// `spacing` metres apart along each box axis, with a fixed mid-range
// intensity. The grid is generated in the box frame and lifted to world
// coordinates, so rotated boxes produce rotated clouds.
func CubeCloud(box sot.Box, spacing float64) []sot.Point {
	if spacing <= 0 {
		panic("testutil: spacing must be positive")
	}
	var pts []sot.Point
	for x := -box.Length / 2; x <= box.Length/2+1e-9; x += spacing {
		for y := -box.Width / 2; y <= box.Width/2+1e-9; y += spacing {
			for z := -box.Height / 2; z <= box.Height/2+1e-9; z += spacing {
				p := box.ToWorld(sot.Point{X: x, Y: y, Z: z})
				p.Intensity = 0.5
				pts = append(pts, p)
			}
		}
	}
	return pts
}

// ShiftCloud returns a copy of cloud translated by (dx, dy, dz).
func ShiftCloud(cloud []sot.Point, dx, dy, dz float64) []sot.Point {
	out := make([]sot.Point, len(cloud))
	for i, p := range cloud {
		out[i] = sot.Point{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz, Intensity: p.Intensity}
	}
	return out
}

// MergeClouds concatenates clouds into one slice without mutating inputs.
func MergeClouds(clouds ...[]sot.Point) []sot.Point {
	var out []sot.Point
	for _, c := range clouds {
		out = append(out, c...)
	}
	return out
}

package sot

// Template pairs the points currently believed to belong to the target with
// the target's box. Set coordinates are box-local (origin at the box centre,
// X along the heading) so matching is invariant to where the object sits in
// the world. A Template is owned by exactly one tracking sequence and is
// mutated at most once per frame.
type Template struct {
	Set PointSet
	Box Box
}

// SearchRegion is the crop of one frame's raw scan around the motion-expanded
// prior box. Set coordinates are local to Ref (the prior box frame). A
// SearchRegion is rebuilt fresh every frame and discarded after use.
type SearchRegion struct {
	Set    PointSet
	Ref    Box
	Margin float64 // additive crop margin per face, metres
}

// ToWorldBox lifts a box expressed in the region's local frame back into the
// world frame.
func (r SearchRegion) ToWorldBox(local Box) Box {
	c := r.Ref.ToWorld(local.Center())
	return Box{
		CenterX:    c.X,
		CenterY:    c.Y,
		CenterZ:    c.Z,
		Length:     local.Length,
		Width:      local.Width,
		Height:     local.Height,
		HeadingRad: WrapHeading(r.Ref.HeadingRad + local.HeadingRad),
	}
}

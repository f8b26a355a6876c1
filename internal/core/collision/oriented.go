package collision

// An oriented box is a box whose incoming geometry is first rotated into
// its unrotated local frame.

func orientedCircle(obb, circle *Collider) bool {
	return boxCircleAt(obb.Center(), obb.HalfExtents(), obb.toLocal(circle.Center()), circle.Radius())
}

// orientedOriented checks each box's corners for containment in the other.
//
// This is a corner-in-box heuristic, not a separating-axis test: two boxes
// crossing like a plus sign, with no corner inside the other, are reported
// as not overlapping.
func orientedOriented(a, b *Collider) bool {
	return cornersInside(a, b) || cornersInside(b, a)
}

// orientedBox runs the separating-axis test over both boxes' corners, so
// an oriented box at rotation 0 agrees exactly with the Box/Box test.
func orientedBox(obb, box *Collider) bool {
	a, b := polygonOf(obb), polygonOf(box)
	return !hasSeparatingAxis(a, b) && !hasSeparatingAxis(b, a)
}

// cornersInside reports whether any corner of other lies inside c.
func cornersInside(c, other *Collider) bool {
	for _, p := range other.Corners() {
		if c.TestPoint(p) {
			return true
		}
	}
	return false
}

package collision

import (
	"math"

	"restep/internal/geom"
)

func boxContains(center, half, p geom.Vector2) bool {
	return math.Abs(p.X-center.X) <= half.X && math.Abs(p.Y-center.Y) <= half.Y
}

// boxBox is a separating-axis test on the two world axes.
func boxBox(a, b *Collider) bool {
	ha, hb := a.HalfExtents(), b.HalfExtents()
	d := a.Center().Sub(b.Center()).Abs()
	return d.X <= ha.X+hb.X && d.Y <= ha.Y+hb.Y
}

// boxCircleAt tests an axis-aligned box against a circle. Outside the box
// the center falls in one of eight Voronoi regions: the four corner regions
// are covered by the corner distance checks, the four edge regions by the
// distance to the nearest edge.
func boxCircleAt(center, half, c geom.Vector2, r float64) bool {
	if boxContains(center, half, c) {
		return true
	}

	lo := center.Sub(half)
	hi := center.Add(half)

	corners := [4]geom.Vector2{lo, {X: hi.X, Y: lo.Y}, hi, {X: lo.X, Y: hi.Y}}
	for _, corner := range corners {
		if c.Dist(corner) <= r {
			return true
		}
	}

	switch {
	case c.X >= lo.X && c.X <= hi.X:
		if c.Y < lo.Y {
			return lo.Y-c.Y <= r
		}
		return c.Y-hi.Y <= r
	case c.Y >= lo.Y && c.Y <= hi.Y:
		if c.X < lo.X {
			return lo.X-c.X <= r
		}
		return c.X-hi.X <= r
	}
	return false
}

package collision

import (
	"math"

	"restep/internal/geom"
)

// convexPolygon resolves a polygon against any polygonal kind with a full
// separating-axis test over both shapes' edge normals.
func convexPolygon(poly, other *Collider) bool {
	a := poly.Vertices()
	b := polygonOf(other)
	return !hasSeparatingAxis(a, b) && !hasSeparatingAxis(b, a)
}

// convexCircle adds the axis from the closest vertex to the circle center to
// the polygon's edge normals.
func convexCircle(poly, circle *Collider) bool {
	verts := poly.Vertices()
	c := circle.Center()
	r := circle.Radius()

	closest := verts[0]
	for _, v := range verts[1:] {
		if v.Sub(c).LenSq() < closest.Sub(c).LenSq() {
			closest = v
		}
	}

	axes := make([]geom.Vector2, 0, len(verts)+1)
	for i := range verts {
		axes = append(axes, verts[(i+1)%len(verts)].Sub(verts[i]).Perp())
	}
	axes = append(axes, closest.Sub(c))

	for _, axis := range axes {
		axis = axis.Normalize()
		if axis == geom.Zero {
			continue
		}
		lo, hi := project(verts, axis)
		center := c.Dot(axis)
		if center+r < lo || center-r > hi {
			return false
		}
	}
	return true
}

func polygonOf(c *Collider) []geom.Vector2 {
	if c.kind == KindConvexPolygon {
		return c.Vertices()
	}
	corners := c.Corners()
	return corners[:]
}

func hasSeparatingAxis(a, b []geom.Vector2) bool {
	for i := range a {
		axis := a[(i+1)%len(a)].Sub(a[i]).Perp()
		if axis == geom.Zero {
			continue
		}
		aLo, aHi := project(a, axis)
		bLo, bHi := project(b, axis)
		if aHi < bLo || bHi < aLo {
			return true
		}
	}
	return false
}

func project(pts []geom.Vector2, axis geom.Vector2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		d := p.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// polygonContains is an edge-side test that accepts either winding.
func polygonContains(verts []geom.Vector2, p geom.Vector2) bool {
	var pos, neg bool
	for i := range verts {
		a := verts[i]
		b := verts[(i+1)%len(verts)]
		cross := b.Sub(a).Cross(p.Sub(a))
		if cross > 0 {
			pos = true
		} else if cross < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

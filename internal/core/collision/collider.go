package collision

import (
	"errors"
	"math"

	"restep/internal/geom"
)

var (
	// ErrDegeneratePolygon is returned for polygons with fewer than three
	// vertices or zero area.
	ErrDegeneratePolygon = errors.New("collision: degenerate polygon")

	// ErrNotConvex is returned when polygon edges turn in both directions.
	ErrNotConvex = errors.New("collision: polygon is not convex")
)

// Owner is the back-reference a collider reads its pose from. The collider
// does not own its owner; it is owned by it.
type Owner interface {
	Position() geom.Vector2
	Rotation() float64
	Scale() geom.Vector2
}

// Collider is a shape attached to one owner. The variant is fixed at
// construction; all shape parameters are stored unscaled and scaled with the
// owner on every query.
type Collider struct {
	kind  Kind
	owner Owner

	half        geom.Vector2   // Box, OrientedBox
	radius      float64        // Circle
	useMinScale bool           // Circle: min-axis scale instead of max-axis
	vertices    []geom.Vector2 // ConvexPolygon, local space

	// Bounding proxy cache, stored as offsets from the owner's position.
	// Translation never invalidates it; only a different rotation (for
	// rotating kinds) or scale value does.
	boundsLo, boundsHi geom.Vector2
	boundsRot          float64
	boundsScale        geom.Vector2
	boundsValid        bool
	boundsRecomputes   int
}

// NewBox creates an axis-aligned box collider with the given half extents.
func NewBox(owner Owner, half geom.Vector2) *Collider {
	return &Collider{kind: KindBox, owner: owner, half: half.Abs()}
}

// NewOrientedBox creates a box collider that inherits its owner's rotation.
func NewOrientedBox(owner Owner, half geom.Vector2) *Collider {
	return &Collider{kind: KindOrientedBox, owner: owner, half: half.Abs()}
}

// NewCircle creates a circle collider. With useMinScale the radius follows
// the smaller of the owner's scale axes, otherwise the larger.
func NewCircle(owner Owner, radius float64, useMinScale bool) *Collider {
	return &Collider{kind: KindCircle, owner: owner, radius: math.Abs(radius), useMinScale: useMinScale}
}

// NewConvexPolygon creates a polygon collider from local-space vertices in
// either winding order.
func NewConvexPolygon(owner Owner, vertices []geom.Vector2) (*Collider, error) {
	if len(vertices) < 3 {
		return nil, ErrDegeneratePolygon
	}
	var sign float64
	for i := range vertices {
		a := vertices[i]
		b := vertices[(i+1)%len(vertices)]
		c := vertices[(i+2)%len(vertices)]
		cross := b.Sub(a).Cross(c.Sub(b))
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
		} else if (cross > 0) != (sign > 0) {
			return nil, ErrNotConvex
		}
	}
	if sign == 0 {
		return nil, ErrDegeneratePolygon
	}
	verts := make([]geom.Vector2, len(vertices))
	copy(verts, vertices)
	return &Collider{kind: KindConvexPolygon, owner: owner, vertices: verts}, nil
}

func (c *Collider) Kind() Kind   { return c.kind }
func (c *Collider) Owner() Owner { return c.owner }

// Center is the owner's current position.
func (c *Collider) Center() geom.Vector2 {
	return c.owner.Position()
}

// HalfExtents returns the box half extents scaled by the owner's scale.
func (c *Collider) HalfExtents() geom.Vector2 {
	return c.half.Mul(c.owner.Scale().Abs())
}

// Radius returns the circle radius under the owner's scale policy.
func (c *Collider) Radius() float64 {
	s := c.owner.Scale().Abs()
	if c.useMinScale {
		return c.radius * math.Min(s.X, s.Y)
	}
	return c.radius * math.Max(s.X, s.Y)
}

// UseMinScale reports the circle scale policy.
func (c *Collider) UseMinScale() bool { return c.useMinScale }

// SetUseMinScale switches the circle scale policy.
func (c *Collider) SetUseMinScale(v bool) {
	c.useMinScale = v
	c.boundsValid = false
}

// Vertices returns the polygon in world space.
func (c *Collider) Vertices() []geom.Vector2 {
	pos := c.owner.Position()
	rot := c.owner.Rotation()
	scale := c.owner.Scale()
	out := make([]geom.Vector2, len(c.vertices))
	for i, v := range c.vertices {
		out[i] = v.Mul(scale).Rotate(rot).Add(pos)
	}
	return out
}

// Corners returns the four world-space corners of a box or oriented box,
// counter-clockwise starting bottom-left in local space.
func (c *Collider) Corners() [4]geom.Vector2 {
	h := c.HalfExtents()
	pos := c.owner.Position()
	local := [4]geom.Vector2{
		{X: -h.X, Y: -h.Y},
		{X: h.X, Y: -h.Y},
		{X: h.X, Y: h.Y},
		{X: -h.X, Y: h.Y},
	}
	rot := 0.0
	if c.kind == KindOrientedBox {
		rot = c.owner.Rotation()
	}
	var out [4]geom.Vector2
	for i, p := range local {
		out[i] = p.Rotate(rot).Add(pos)
	}
	return out
}

// TestPoint reports whether p lies inside the shape in its owner's current
// transform. An unknown kind contains nothing.
func (c *Collider) TestPoint(p geom.Vector2) bool {
	switch c.kind {
	case KindBox:
		return boxContains(c.Center(), c.HalfExtents(), p)
	case KindCircle:
		return p.Dist(c.Center()) <= c.Radius()
	case KindOrientedBox:
		return boxContains(c.Center(), c.HalfExtents(), c.toLocal(p))
	case KindConvexPolygon:
		return polygonContains(c.Vertices(), p)
	}
	return false
}

// TestOverlap reports whether the two shapes currently intersect. Pairs that
// cannot be resolved are reported as not overlapping; use Overlap to see why.
func (c *Collider) TestOverlap(other *Collider) bool {
	hit, _ := Overlap(c, other)
	return hit
}

// IsPrimaryHandler reports whether this collider's kind is authoritative
// for a pair with otherKind.
func (c *Collider) IsPrimaryHandler(otherKind Kind) bool {
	return IsPrimaryHandler(c.kind, otherKind)
}

// BBox returns the axis-aligned bounding proxy. Its position tracks the
// owner directly; its extents are recomputed only when the owner's rotation
// or scale differs from the values seen at the last recomputation.
func (c *Collider) BBox() BBox {
	c.refreshBounds()
	pos := c.owner.Position()
	return BBox{Min: pos.Add(c.boundsLo), Max: pos.Add(c.boundsHi)}
}

// BoundsRecomputes counts how often the bounding proxy extents were rebuilt.
func (c *Collider) BoundsRecomputes() int {
	return c.boundsRecomputes
}

func (c *Collider) refreshBounds() {
	scale := c.owner.Scale()
	rot := 0.0
	if c.kind.rotates() {
		rot = c.owner.Rotation()
	}
	if c.boundsValid && rot == c.boundsRot && scale == c.boundsScale {
		return
	}

	switch c.kind {
	case KindBox:
		h := c.half.Mul(scale.Abs())
		c.boundsLo, c.boundsHi = h.Scale(-1), h
	case KindCircle:
		r := c.Radius()
		c.boundsLo, c.boundsHi = geom.Vec(-r, -r), geom.Vec(r, r)
	case KindOrientedBox:
		h := c.half.Mul(scale.Abs())
		c.boundsLo, c.boundsHi = extents([]geom.Vector2{
			geom.Vec(-h.X, -h.Y).Rotate(rot),
			geom.Vec(h.X, -h.Y).Rotate(rot),
			geom.Vec(h.X, h.Y).Rotate(rot),
			geom.Vec(-h.X, h.Y).Rotate(rot),
		})
	case KindConvexPolygon:
		pts := make([]geom.Vector2, len(c.vertices))
		for i, v := range c.vertices {
			pts[i] = v.Mul(scale).Rotate(rot)
		}
		c.boundsLo, c.boundsHi = extents(pts)
	default:
		c.boundsLo, c.boundsHi = geom.Zero, geom.Zero
	}

	c.boundsRot = rot
	c.boundsScale = scale
	c.boundsValid = true
	c.boundsRecomputes++
}

// toLocal rotates p into the unrotated frame of an oriented shape, about
// the shape's own center.
func (c *Collider) toLocal(p geom.Vector2) geom.Vector2 {
	return p.RotateAbout(c.Center(), -c.owner.Rotation())
}

func extents(pts []geom.Vector2) (lo, hi geom.Vector2) {
	lo, hi = pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return lo, hi
}

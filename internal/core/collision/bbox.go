package collision

import "restep/internal/geom"

// BBox is the axis-aligned bounding proxy of a collider, used only by the
// broadphase. Bounds are inclusive.
type BBox struct {
	Min geom.Vector2 `json:"min"`
	Max geom.Vector2 `json:"max"`
}

// Center returns the midpoint of the box.
func (b BBox) Center() geom.Vector2 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Half returns the half extents.
func (b BBox) Half() geom.Vector2 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// Overlaps reports whether the two boxes intersect or touch.
func (b BBox) Overlaps(o BBox) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Contains reports whether p lies inside or on the box.
func (b BBox) Contains(p geom.Vector2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// ApproxEqual compares both corners within eps.
func (b BBox) ApproxEqual(o BBox, eps float64) bool {
	return b.Min.ApproxEqual(o.Min, eps) && b.Max.ApproxEqual(o.Max, eps)
}

package render

import (
	"fmt"
	"image/color"
	"math"

	"restep/internal/geom"
)

// Shape tells a draw pass how to rasterize a proxy's local geometry.
type Shape uint8

const (
	ShapeRect Shape = iota
	ShapeCircle
	ShapePolygon
)

func (s Shape) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// ProxyOptions describes the local geometry of a proxy before any entity
// transform is applied. Size is a half-extent for rects, a radius in X for
// circles. Vertices are only used by ShapePolygon.
type ProxyOptions struct {
	Shape    Shape
	Size     geom.Vector2
	Vertices []geom.Vector2
	Color    color.RGBA
}

// Proxy is a drawable stand-in for an entity. Its transform is written only
// by Bridge.PublishLatest, never by the simulation.
type Proxy struct {
	meshID    uint64
	shape     Shape
	size      geom.Vector2
	vertices  []geom.Vector2
	color     color.RGBA
	opacity   float64
	transform geom.Transform
}

func (p *Proxy) MeshID() uint64 { return p.meshID }
func (p *Proxy) Shape() Shape   { return p.shape }

// Hidden reports whether the proxy would draw nothing: either it was
// shrunk to zero because another proxy is active, or it is transparent.
func (p *Proxy) Hidden() bool {
	s := p.transform.EffectiveScale()
	return s.X == 0 || s.Y == 0 || p.opacity <= 0
}

// Drawable is a value copy of a proxy taken under the bridge lock, safe to
// hand to any draw pass.
type Drawable struct {
	MeshID   uint64
	EntityID uint64
	Shape    Shape
	Size     geom.Vector2
	Vertices []geom.Vector2
	Color    color.RGBA
	Opacity  float64
	// Matrix maps local geometry to normalized device coordinates.
	Matrix geom.Matrix3
}

// Outline returns the proxy's local outline in NDC. Circles are
// approximated by a polygon with the given number of segments.
func (d Drawable) Outline(segments int) []geom.Vector2 {
	var local []geom.Vector2
	switch d.Shape {
	case ShapeRect:
		h := d.Size
		local = []geom.Vector2{
			geom.Vec(-h.X, -h.Y), geom.Vec(h.X, -h.Y),
			geom.Vec(h.X, h.Y), geom.Vec(-h.X, h.Y),
		}
	case ShapeCircle:
		if segments < 3 {
			segments = 3
		}
		r := geom.Vec(d.Size.X, 0)
		for i := 0; i < segments; i++ {
			local = append(local, r.Rotate(2*math.Pi*float64(i)/float64(segments)))
		}
	case ShapePolygon:
		local = d.Vertices
	}

	out := make([]geom.Vector2, len(local))
	for i, v := range local {
		out[i] = d.Matrix.Apply(v)
	}
	return out
}

// Center returns the proxy origin in NDC.
func (d Drawable) Center() geom.Vector2 {
	return d.Matrix.Apply(geom.Zero)
}

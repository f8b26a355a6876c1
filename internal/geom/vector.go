// Package geom provides the 2-D value types shared by the simulation core and
// the render side: vectors, 3x3 matrices and a lazily composed transform.
//
// All types are plain values. Methods never mutate their receiver except on
// Transform, which caches its composed matrix.
package geom

import "math"

// Epsilon is the default tolerance for approximate comparisons.
const Epsilon = 1e-9

// Vector2 is an immutable 2-D vector.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec is shorthand for Vector2{X: x, Y: y}.
func Vec(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// Zero and One are the common constant vectors.
var (
	Zero = Vector2{}
	One  = Vector2{X: 1, Y: 1}
)

func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Mul multiplies component-wise (used to apply non-uniform scale).
func (v Vector2) Mul(o Vector2) Vector2 {
	return Vector2{X: v.X * o.X, Y: v.Y * o.Y}
}

func (v Vector2) Scale(f float64) Vector2 {
	return Vector2{X: v.X * f, Y: v.Y * f}
}

func (v Vector2) Dot(o Vector2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Cross returns the z component of the 3-D cross product.
func (v Vector2) Cross(o Vector2) float64 {
	return v.X*o.Y - v.Y*o.X
}

func (v Vector2) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

func (v Vector2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between two points.
func (v Vector2) Dist(o Vector2) float64 {
	return v.Sub(o).Len()
}

// Abs returns the vector with both components made non-negative.
func (v Vector2) Abs() Vector2 {
	return Vector2{X: math.Abs(v.X), Y: math.Abs(v.Y)}
}

// Perp returns the vector rotated by +90°.
func (v Vector2) Perp() Vector2 {
	return Vector2{X: -v.Y, Y: v.X}
}

// Normalize returns the unit vector, or Zero for a zero-length input.
func (v Vector2) Normalize() Vector2 {
	l := v.Len()
	if l == 0 {
		return Zero
	}
	return Vector2{X: v.X / l, Y: v.Y / l}
}

// Rotate rotates the vector counter-clockwise by theta radians about the origin.
func (v Vector2) Rotate(theta float64) Vector2 {
	sin, cos := math.Sincos(theta)
	return Vector2{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// RotateAbout rotates the point by theta radians about center.
func (v Vector2) RotateAbout(center Vector2, theta float64) Vector2 {
	return v.Sub(center).Rotate(theta).Add(center)
}

// Min returns the component-wise minimum.
func (v Vector2) Min(o Vector2) Vector2 {
	return Vector2{X: math.Min(v.X, o.X), Y: math.Min(v.Y, o.Y)}
}

// Max returns the component-wise maximum.
func (v Vector2) Max(o Vector2) Vector2 {
	return Vector2{X: math.Max(v.X, o.X), Y: math.Max(v.Y, o.Y)}
}

// ApproxEqual reports whether both components differ by at most eps.
func (v Vector2) ApproxEqual(o Vector2, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

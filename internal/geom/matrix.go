package geom

// Matrix3 is a row-major 3x3 matrix operating on homogeneous 2-D points.
// Composition is associative but not commutative: a.Mul(b) applies b first.
type Matrix3 [3][3]float64

// Identity returns the identity matrix.
func Identity() Matrix3 {
	return Matrix3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Translation returns a matrix translating by t.
//
//	[1 0 X]
//	[0 1 Y]
//	[0 0 1]
func Translation(t Vector2) Matrix3 {
	return Matrix3{
		{1, 0, t.X},
		{0, 1, t.Y},
		{0, 0, 1},
	}
}

// Rotation returns a matrix rotating counter-clockwise by theta radians.
// A z-axis rotation is the 2-D rotation.
func Rotation(theta float64) Matrix3 {
	r := Vec(1, 0).Rotate(theta)
	return Matrix3{
		{r.X, -r.Y, 0},
		{r.Y, r.X, 0},
		{0, 0, 1},
	}
}

// Scaling returns a non-uniform scale matrix.
func Scaling(s Vector2) Matrix3 {
	return Matrix3{
		{s.X, 0, 0},
		{0, s.Y, 0},
		{0, 0, 1},
	}
}

// Screen maps pixel coordinates (origin top-left, y down) of a viewport
// to normalized device coordinates in [-1, 1].
//
//	[2/W   0    -1]
//	[0    -2/H   1]
//	[0     0     1]
//
// A degenerate viewport yields the identity.
func Screen(viewport Vector2) Matrix3 {
	if viewport.X == 0 || viewport.Y == 0 {
		return Identity()
	}
	return Matrix3{
		{2 / viewport.X, 0, -1},
		{0, -2 / viewport.Y, 1},
		{0, 0, 1},
	}
}

// Mul returns m·o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// Apply transforms the point p (w = 1).
func (m Matrix3) Apply(p Vector2) Vector2 {
	return Vector2{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2],
	}
}

// ApproxEqual compares every element within eps.
func (m Matrix3) ApproxEqual(o Matrix3, eps float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := m[i][j] - o[i][j]
			if d > eps || d < -eps {
				return false
			}
		}
	}
	return true
}

package geom

// Transform is a 2-D transformation owned by exactly one entity or drawable
// proxy. The composed matrix is
//
//	screen · translate · rotate · scale
//
// where scale is Scale ⊙ BaseScale. Every setter marks the cache stale; the
// matrix is recomputed on the next Matrix call, so the cached value always
// reflects the last-written components before it is read.
type Transform struct {
	translation Vector2
	rotation    float64
	scale       Vector2
	baseScale   Vector2
	viewport    Vector2

	valid  bool
	cached Matrix3
}

// NewTransform returns an identity-scaled transform for the given viewport.
func NewTransform(viewport Vector2) Transform {
	return Transform{
		scale:     One,
		baseScale: One,
		viewport:  viewport,
	}
}

func (t *Transform) Translation() Vector2 { return t.translation }
func (t *Transform) Rotation() float64    { return t.rotation }
func (t *Transform) Scale() Vector2       { return t.scale }
func (t *Transform) BaseScale() Vector2   { return t.baseScale }
func (t *Transform) Viewport() Vector2    { return t.viewport }

func (t *Transform) SetTranslation(v Vector2) {
	t.translation = v
	t.valid = false
}

func (t *Transform) SetRotation(theta float64) {
	t.rotation = theta
	t.valid = false
}

func (t *Transform) SetScale(s Vector2) {
	t.scale = s
	t.valid = false
}

func (t *Transform) SetBaseScale(s Vector2) {
	t.baseScale = s
	t.valid = false
}

func (t *Transform) SetViewport(v Vector2) {
	t.viewport = v
	t.valid = false
}

// EffectiveScale is Scale ⊙ BaseScale, the size actually drawn.
func (t *Transform) EffectiveScale() Vector2 {
	return t.scale.Mul(t.baseScale)
}

// IsStale reports whether the next Matrix call will recompute.
func (t *Transform) IsStale() bool {
	return !t.valid
}

// Recompute rebuilds the cached matrix from the current components.
func (t *Transform) Recompute() {
	t.cached = Screen(t.viewport).
		Mul(Translation(t.translation)).
		Mul(Rotation(t.rotation)).
		Mul(Scaling(t.EffectiveScale()))
	t.valid = true
}

// Matrix returns the composed matrix, recomputing it if any component
// changed since the last read.
func (t *Transform) Matrix() Matrix3 {
	if !t.valid {
		t.Recompute()
	}
	return t.cached
}

// Local returns translate · rotate · scale without the screen mapping,
// i.e. the model-to-pixel matrix.
func (t *Transform) Local() Matrix3 {
	return Translation(t.translation).
		Mul(Rotation(t.rotation)).
		Mul(Scaling(t.EffectiveScale()))
}

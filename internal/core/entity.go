package core

import (
	"restep/internal/core/collision"
	"restep/internal/geom"
)

// Immortal is the lifetime of an entity that never expires.
const Immortal = -1.0

// OverlapFunc is notified once per confirmed overlap, from self's side.
type OverlapFunc func(self, other *Entity)

// TickHookFunc runs every time the entity is advanced.
type TickHookFunc func(self *Entity, dt float64)

// DisposeFunc runs once, right before the entity leaves the live list.
type DisposeFunc func(self *Entity)

// EntityOptions configures a new entity.
type EntityOptions struct {
	Tag             string  // free-form label for logs and the debug API
	Lifetime        float64 // seconds; negative is immortal, zero expires on the first tick
	ImageScale      geom.Vector2
	Position        geom.Vector2
	Rotation        float64
	Scale           geom.Vector2
	Velocity        geom.Vector2
	AngularVelocity float64
	Opacity         float64
}

// DefaultEntityOptions returns an immortal, fully opaque entity at the
// origin with unit scale.
func DefaultEntityOptions() EntityOptions {
	return EntityOptions{
		Lifetime:   Immortal,
		ImageScale: geom.One,
		Scale:      geom.One,
		Opacity:    1,
	}
}

// Entity is one simulated object.
//
// Entity has no lock of its own. Once admitted, every read and write must
// happen on the core thread or while holding the engine's lock.
type Entity struct {
	id        uint64
	tag       string
	transform geom.Transform

	velocity        geom.Vector2
	angularVelocity float64
	opacity         float64

	lifetime  float64
	spawnTime float64
	age       float64

	admitted       bool
	pendingDestroy bool
	expired        bool
	disposing      bool
	invalidated    bool

	collider *collision.Collider

	onOverlap []OverlapFunc
	onTick    []TickHookFunc
	onDispose []DisposeFunc
}

// NewEntity creates an entity with an ID from ids. Zero scales are taken
// as unit scale.
func NewEntity(ids *IDAllocator, opts EntityOptions) *Entity {
	if opts.Scale == geom.Zero {
		opts.Scale = geom.One
	}
	if opts.ImageScale == geom.Zero {
		opts.ImageScale = geom.One
	}

	e := &Entity{
		id:              ids.Next(),
		tag:             opts.Tag,
		transform:       geom.NewTransform(geom.Zero),
		velocity:        opts.Velocity,
		angularVelocity: opts.AngularVelocity,
		opacity:         opts.Opacity,
		lifetime:        opts.Lifetime,
		invalidated:     true,
	}
	e.transform.SetTranslation(opts.Position)
	e.transform.SetRotation(opts.Rotation)
	e.transform.SetScale(opts.Scale)
	e.transform.SetBaseScale(opts.ImageScale)
	return e
}

func (e *Entity) ID() uint64  { return e.id }
func (e *Entity) Tag() string { return e.tag }

// Position, Rotation and Scale make the entity a collision.Owner.
func (e *Entity) Position() geom.Vector2 { return e.transform.Translation() }
func (e *Entity) Rotation() float64      { return e.transform.Rotation() }
func (e *Entity) Scale() geom.Vector2    { return e.transform.Scale() }

// ImageScale is the intrinsic size of the entity's visual.
func (e *Entity) ImageScale() geom.Vector2 { return e.transform.BaseScale() }

// Matrix returns the local translate-rotate-scale matrix of the entity.
func (e *Entity) Matrix() geom.Matrix3 { return e.transform.Local() }

func (e *Entity) SetPosition(p geom.Vector2) {
	e.transform.SetTranslation(p)
	e.invalidated = true
}

func (e *Entity) SetRotation(theta float64) {
	e.transform.SetRotation(theta)
	e.invalidated = true
}

func (e *Entity) SetScale(s geom.Vector2) {
	e.transform.SetScale(s)
	e.invalidated = true
}

func (e *Entity) SetImageScale(s geom.Vector2) {
	e.transform.SetBaseScale(s)
	e.invalidated = true
}

func (e *Entity) Velocity() geom.Vector2       { return e.velocity }
func (e *Entity) SetVelocity(v geom.Vector2)   { e.velocity = v }
func (e *Entity) AngularVelocity() float64     { return e.angularVelocity }
func (e *Entity) SetAngularVelocity(w float64) { e.angularVelocity = w }

func (e *Entity) Opacity() float64 { return e.opacity }

func (e *Entity) SetOpacity(o float64) {
	e.opacity = o
	e.invalidated = true
}

// Lifetime returns the configured lifetime in seconds.
func (e *Entity) Lifetime() float64 { return e.lifetime }

// Immortal reports whether the entity never expires.
func (e *Entity) Immortal() bool { return e.lifetime < 0 }

// SpawnTime is the simulation time at admission.
func (e *Entity) SpawnTime() float64 { return e.spawnTime }

// Age is the simulation time elapsed since admission, as of the last
// advance.
func (e *Entity) Age() float64 { return e.age }

// Admitted reports whether the entity is in an engine's live set.
func (e *Entity) Admitted() bool { return e.admitted }

// Destroy marks the entity for removal at the end of the current or next
// tick.
func (e *Entity) Destroy() { e.pendingDestroy = true }

// PendingDestroy reports whether the entity is marked for removal.
func (e *Entity) PendingDestroy() bool { return e.pendingDestroy }

// Expired reports whether the pending destroy came from the lifetime.
func (e *Entity) Expired() bool { return e.expired }

// Invalidated reports whether the visual state changed since the render
// bridge last copied it.
func (e *Entity) Invalidated() bool { return e.invalidated }

// Invalidate forces the next publish to copy this entity.
func (e *Entity) Invalidate() { e.invalidated = true }

// ClearInvalidated is called by the render bridge after a copy.
func (e *Entity) ClearInvalidated() { e.invalidated = false }

// Collider returns the attached collider, or nil.
func (e *Entity) Collider() *collision.Collider { return e.collider }

// AttachBox replaces the collider with an axis-aligned box.
func (e *Entity) AttachBox(half geom.Vector2) *collision.Collider {
	e.collider = collision.NewBox(e, half)
	return e.collider
}

// AttachOrientedBox replaces the collider with a box that follows the
// entity's rotation.
func (e *Entity) AttachOrientedBox(half geom.Vector2) *collision.Collider {
	e.collider = collision.NewOrientedBox(e, half)
	return e.collider
}

// AttachCircle replaces the collider with a circle.
func (e *Entity) AttachCircle(radius float64, useMinScale bool) *collision.Collider {
	e.collider = collision.NewCircle(e, radius, useMinScale)
	return e.collider
}

// AttachConvex replaces the collider with a convex polygon given in local
// space. The existing collider is kept on error.
func (e *Entity) AttachConvex(vertices []geom.Vector2) (*collision.Collider, error) {
	c, err := collision.NewConvexPolygon(e, vertices)
	if err != nil {
		return nil, err
	}
	e.collider = c
	return c, nil
}

// DetachCollider removes the collider; the entity stops taking part in
// collision detection.
func (e *Entity) DetachCollider() { e.collider = nil }

// TestOverlap reports whether both entities have colliders that currently
// intersect.
func (e *Entity) TestOverlap(other *Entity) bool {
	if other == nil || e.collider == nil || other.collider == nil {
		return false
	}
	return e.collider.TestOverlap(other.collider)
}

// OnOverlap adds an overlap hook.
func (e *Entity) OnOverlap(fn OverlapFunc) { e.onOverlap = append(e.onOverlap, fn) }

// OnTick adds a per-tick hook.
func (e *Entity) OnTick(fn TickHookFunc) { e.onTick = append(e.onTick, fn) }

// OnDispose adds a disposal hook.
func (e *Entity) OnDispose(fn DisposeFunc) { e.onDispose = append(e.onDispose, fn) }

// Advance integrates velocity over dt, fires the tick hooks and marks the
// entity for destruction once simTime-spawnTime reaches its lifetime.
func (e *Entity) Advance(dt, simTime float64) {
	if e.velocity != geom.Zero {
		e.SetPosition(e.Position().Add(e.velocity.Scale(dt)))
	}
	if e.angularVelocity != 0 {
		e.SetRotation(e.Rotation() + e.angularVelocity*dt)
	}

	for _, fn := range e.onTick {
		callHook("tick", e.id, func() { fn(e, dt) })
	}

	e.age = simTime - e.spawnTime
	if e.lifetime >= 0 && e.age >= e.lifetime && !e.pendingDestroy {
		e.pendingDestroy = true
		e.expired = true
	}
}

func (e *Entity) notifyOverlap(other *Entity) {
	for _, fn := range e.onOverlap {
		callHook("overlap", e.id, func() { fn(e, other) })
	}
}

func (e *Entity) dispose() {
	for _, fn := range e.onDispose {
		callHook("dispose", e.id, func() { fn(e) })
	}
}

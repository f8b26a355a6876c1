// Package scene builds the demo world shared by the server and the viewer:
// bouncing bodies of every collider kind, each bound to a render proxy.
package scene

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"math"
	"math/rand/v2"

	"restep/internal/core"
	"restep/internal/core/collision"
	"restep/internal/geom"
	"restep/internal/render"
)

// Shape is the local geometry of a body, used for both its collider and
// its proxy.
type Shape struct {
	Kind     collision.Kind
	Half     geom.Vector2   // box, oriented box
	Radius   float64        // circle
	Vertices []geom.Vector2 // convex polygon
	Color    color.RGBA
}

// Attach gives ent a collider matching the shape.
func (s Shape) Attach(ent *core.Entity) error {
	switch s.Kind {
	case collision.KindBox:
		ent.AttachBox(s.Half)
	case collision.KindOrientedBox:
		ent.AttachOrientedBox(s.Half)
	case collision.KindCircle:
		ent.AttachCircle(s.Radius, false)
	case collision.KindConvexPolygon:
		if _, err := ent.AttachConvex(s.Vertices); err != nil {
			return err
		}
	default:
		return fmt.Errorf("attach: unknown kind %v", s.Kind)
	}
	return nil
}

// Proxy returns proxy options drawing the same outline as the collider.
func (s Shape) Proxy() render.ProxyOptions {
	opts := render.ProxyOptions{Color: s.Color}
	switch s.Kind {
	case collision.KindCircle:
		opts.Shape = render.ShapeCircle
		opts.Size = geom.Vec(s.Radius, s.Radius)
	case collision.KindConvexPolygon:
		opts.Shape = render.ShapePolygon
		opts.Vertices = s.Vertices
	default:
		opts.Shape = render.ShapeRect
		opts.Size = s.Half
	}
	return opts
}

var palette = []color.RGBA{
	{239, 71, 111, 255},
	{255, 209, 102, 255},
	{6, 214, 160, 255},
	{17, 138, 178, 255},
}

// Scene owns the demo bodies. All methods except Populate run on the core
// thread with the lock held.
type Scene struct {
	engine *core.Engine
	bridge *render.Bridge
	bounds geom.Vector2
	rng    *rand.Rand

	overlaps int // guarded by the core lock
}

// New creates a scene inside bounds. The same seed gives the same world.
func New(engine *core.Engine, bridge *render.Bridge, bounds geom.Vector2, seed uint64) *Scene {
	s := &Scene{
		engine: engine,
		bridge: bridge,
		bounds: bounds,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	engine.Subscribe(s.bounce)
	return s
}

// Populate spawns n bodies cycling through every collider kind. Every
// fourth body is short lived and respawns elsewhere when it expires.
func (s *Scene) Populate(n int) error {
	var err error
	s.engine.Do(func() {
		for i := 0; i < n && err == nil; i++ {
			lifetime := core.Immortal
			if i%4 == 3 {
				lifetime = 2 + 3*s.rng.Float64()
			}
			_, err = s.SpawnLocked(s.randomShape(i), s.randomPoint(), s.randomVelocity(), lifetime)
		}
	})
	return err
}

// SpawnLocked creates, binds and admits one body. The lock must be held.
func (s *Scene) SpawnLocked(shape Shape, pos, vel geom.Vector2, lifetime float64) (*core.Entity, error) {
	opts := core.DefaultEntityOptions()
	opts.Tag = shape.Kind.String()
	opts.Position = pos
	opts.Velocity = vel
	opts.Lifetime = lifetime
	if shape.Kind != collision.KindBox {
		opts.AngularVelocity = s.rng.Float64() - 0.5
	}

	ent := s.engine.NewEntity(opts)
	if err := shape.Attach(ent); err != nil {
		return nil, err
	}
	if s.bridge != nil {
		if err := s.bridge.Bind(ent, s.bridge.NewProxy(shape.Proxy())); err != nil {
			return nil, err
		}
	}

	ent.OnOverlap(s.flash)
	ent.OnTick(restore)
	ent.OnDispose(s.respawn)

	if err := s.engine.AddObjectLocked(ent); err != nil {
		if s.bridge != nil {
			s.bridge.Detach(ent)
		}
		return nil, err
	}
	return ent, nil
}

// Adopt binds a proxy for shape to an entity created elsewhere and gives
// it the scene's overlap feedback. Adopted bodies are not respawned. The
// lock must be held.
func (s *Scene) Adopt(ent *core.Entity, shape Shape) error {
	if shape.Color == (color.RGBA{}) {
		shape.Color = palette[int(shape.Kind)%len(palette)]
	}
	if s.bridge != nil {
		if err := s.bridge.Bind(ent, s.bridge.NewProxy(shape.Proxy())); err != nil {
			return err
		}
	}
	ent.OnOverlap(s.flash)
	ent.OnTick(restore)
	return nil
}

// Overlaps returns how many overlap notifications the scene has seen.
func (s *Scene) Overlaps() int {
	var n int
	s.engine.Do(func() { n = s.overlaps })
	return n
}

// flash dims a body for the tick it touches something.
func (s *Scene) flash(self, other *core.Entity) {
	s.overlaps++
	self.SetOpacity(0.5)
}

func restore(self *core.Entity, dt float64) {
	if self.Opacity() != 1 {
		self.SetOpacity(1)
	}
}

// respawn replaces expired bodies with a fresh one of the same kind.
func (s *Scene) respawn(self *core.Entity) {
	if !self.Expired() {
		return
	}
	kind, ok := collision.ParseKind(self.Tag())
	if !ok {
		log.Printf("⚠️ Respawn of entity %d skipped: tag %q is not a collider kind", self.ID(), self.Tag())
		return
	}
	lifetime := 2 + 3*s.rng.Float64()
	// At the entity cap the body is simply not replaced.
	_, err := s.SpawnLocked(s.shapeOf(kind), s.randomPoint(), s.randomVelocity(), lifetime)
	if err != nil && !errors.Is(err, core.ErrEntityLimit) {
		log.Printf("⚠️ Respawn of %s entity %d failed: %v", kind, self.ID(), err)
	}
}

// bounce keeps bodies inside the bounds by reflecting their velocity.
func (s *Scene) bounce(dt float64, live []*core.Entity) {
	for _, ent := range live {
		p, v := ent.Position(), ent.Velocity()
		if (p.X < 0 && v.X < 0) || (p.X > s.bounds.X && v.X > 0) {
			v.X = -v.X
		}
		if (p.Y < 0 && v.Y < 0) || (p.Y > s.bounds.Y && v.Y > 0) {
			v.Y = -v.Y
		}
		ent.SetVelocity(v)
	}
}

func (s *Scene) randomShape(i int) Shape {
	kinds := []collision.Kind{
		collision.KindBox, collision.KindCircle,
		collision.KindOrientedBox, collision.KindConvexPolygon,
	}
	return s.shapeOf(kinds[i%len(kinds)])
}

func (s *Scene) shapeOf(kind collision.Kind) Shape {
	size := 10 + 15*s.rng.Float64()
	shape := Shape{Kind: kind, Color: palette[int(kind)%len(palette)]}
	switch kind {
	case collision.KindCircle:
		shape.Radius = size
	case collision.KindConvexPolygon:
		shape.Vertices = regularPolygon(3+s.rng.IntN(4), size)
	default:
		shape.Half = geom.Vec(size, size*(0.5+s.rng.Float64()))
	}
	return shape
}

func (s *Scene) randomPoint() geom.Vector2 {
	return geom.Vec(s.rng.Float64()*s.bounds.X, s.rng.Float64()*s.bounds.Y)
}

func (s *Scene) randomVelocity() geom.Vector2 {
	speed := 40 + 80*s.rng.Float64()
	return geom.Vec(speed, 0).Rotate(2 * math.Pi * s.rng.Float64())
}

func regularPolygon(sides int, radius float64) []geom.Vector2 {
	pts := make([]geom.Vector2, sides)
	for i := range pts {
		pts[i] = geom.Vec(radius, 0).Rotate(2 * math.Pi * float64(i) / float64(sides))
	}
	return pts
}

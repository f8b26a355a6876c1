// Package render hands simulation state to a presentation thread.
//
// The simulation owns entities; the presentation side owns proxies. A
// Bridge associates each entity with one or more proxies (for example a
// sprite per animation frame) of which exactly one is active. PublishLatest
// copies the transform of every visually invalidated entity into its active
// proxy and shrinks the others to zero so a draw pass skips them.
//
// Lock order is core lock, then bridge lock. Nothing in this package takes
// the core lock while holding the bridge lock.
package render

import (
	"fmt"
	"sync"
	"time"

	"restep/internal/core"
	"restep/internal/geom"
	"restep/internal/metrics"
)

type association struct {
	entity  *core.Entity
	proxies []*Proxy
	active  uint64 // mesh ID
	dirty   bool   // repaint even if the entity is not invalidated
}

// staged holds the scalars copied out of one entity under the core lock.
type staged struct {
	entityID   uint64
	position   geom.Vector2
	rotation   float64
	scale      geom.Vector2
	imageScale geom.Vector2
	opacity    float64
}

// PublishStats summarizes one PublishLatest call.
type PublishStats struct {
	Associations int
	Updated      int // entities copied
	Shown        int // proxies written as active
	Hidden       int // proxies shrunk to zero
	Duration     time.Duration
}

// Bridge is the render-side registry of entity/proxy associations.
type Bridge struct {
	core     sync.Locker
	ids      *core.IDAllocator
	viewport geom.Vector2

	mu      sync.Mutex
	assoc   map[uint64]*association // by entity ID
	order   []*association
	staging []staged
}

// NewBridge creates a bridge that reads entity fields under coreLock.
func NewBridge(coreLock sync.Locker, viewport geom.Vector2) *Bridge {
	return &Bridge{
		core:     coreLock,
		ids:      core.NewIDAllocator(),
		viewport: viewport,
		assoc:    make(map[uint64]*association),
	}
}

// NewProxy allocates a proxy with a fresh mesh ID.
func (b *Bridge) NewProxy(opts ProxyOptions) *Proxy {
	b.mu.Lock()
	viewport := b.viewport
	b.mu.Unlock()

	p := &Proxy{
		meshID:    b.ids.Next(),
		shape:     opts.Shape,
		size:      opts.Size,
		vertices:  append([]geom.Vector2(nil), opts.Vertices...),
		color:     opts.Color,
		opacity:   1,
		transform: geom.NewTransform(viewport),
	}
	// Nothing is drawn until the first publish.
	p.transform.SetScale(geom.Zero)
	return p
}

// Bind associates proxies with ent. The first proxy of a new association
// becomes active. Binding an already associated entity appends proxies.
//
// Bind registers a dispose hook on ent, so call it before the entity is
// admitted or with the core lock held.
func (b *Bridge) Bind(ent *core.Entity, proxies ...*Proxy) error {
	if ent == nil {
		return core.ErrNilEntity
	}
	if len(proxies) == 0 {
		return fmt.Errorf("bind entity %d: no proxies", ent.ID())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assoc[ent.ID()]
	if !ok {
		a = &association{entity: ent, active: proxies[0].meshID}
		b.assoc[ent.ID()] = a
		b.order = append(b.order, a)
		ent.OnDispose(b.Detach)
	}
	a.proxies = append(a.proxies, proxies...)
	a.dirty = true
	return nil
}

// SetActive selects which of the entity's proxies is drawn. The change is
// applied on the next publish.
func (b *Bridge) SetActive(ent *core.Entity, meshID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assoc[ent.ID()]
	if !ok {
		return fmt.Errorf("set active: entity %d is not bound", ent.ID())
	}
	for _, p := range a.proxies {
		if p.meshID == meshID {
			a.active = meshID
			a.dirty = true
			return nil
		}
	}
	return fmt.Errorf("set active: entity %d has no proxy %d", ent.ID(), meshID)
}

// Active returns the mesh ID of the entity's active proxy.
func (b *Bridge) Active(ent *core.Entity) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assoc[ent.ID()]
	if !ok {
		return 0, false
	}
	return a.active, true
}

// Detach drops the entity's association and its proxies. It matches
// core.DisposeFunc and is registered by Bind.
func (b *Bridge) Detach(ent *core.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assoc[ent.ID()]
	if !ok {
		return
	}
	delete(b.assoc, ent.ID())
	for i, o := range b.order {
		if o == a {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Bound reports whether ent has an association.
func (b *Bridge) Bound(ent *core.Entity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.assoc[ent.ID()]
	return ok
}

// SetViewport resizes every proxy's screen mapping and forces a repaint.
func (b *Bridge) SetViewport(v geom.Vector2) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.viewport = v
	for _, a := range b.order {
		for _, p := range a.proxies {
			p.transform.SetViewport(v)
		}
		a.dirty = true
	}
}

// Len returns the number of associations.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// PublishLatest copies the latest simulation state into proxies. The core
// lock is held only while scalars are copied out of invalidated entities;
// proxy writes happen after it is released.
func (b *Bridge) PublishLatest() PublishStats {
	start := time.Now()

	b.core.Lock()
	b.mu.Lock()
	b.staging = b.staging[:0]
	for _, a := range b.order {
		ent := a.entity
		if !ent.Invalidated() && !a.dirty {
			continue
		}
		b.staging = append(b.staging, staged{
			entityID:   ent.ID(),
			position:   ent.Position(),
			rotation:   ent.Rotation(),
			scale:      ent.Scale(),
			imageScale: ent.ImageScale(),
			opacity:    ent.Opacity(),
		})
		ent.ClearInvalidated()
		a.dirty = false
	}
	stats := PublishStats{Associations: len(b.order), Updated: len(b.staging)}
	b.mu.Unlock()
	b.core.Unlock()

	b.mu.Lock()
	for i := range b.staging {
		s := &b.staging[i]
		a, ok := b.assoc[s.entityID]
		if !ok {
			continue // detached since the copy
		}
		for _, p := range a.proxies {
			p.transform.SetTranslation(s.position)
			p.transform.SetRotation(s.rotation)
			p.transform.SetBaseScale(s.imageScale)
			p.opacity = s.opacity
			if p.meshID == a.active {
				p.transform.SetScale(s.scale)
				stats.Shown++
			} else {
				p.transform.SetScale(geom.Zero)
				stats.Hidden++
			}
		}
	}
	b.mu.Unlock()

	stats.Duration = time.Since(start)
	metrics.RecordPublish(stats.Duration, stats.Updated)
	return stats
}

// Proxies returns the visible proxies in bind order as value copies.
func (b *Bridge) Proxies() []Drawable {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Drawable, 0, len(b.order))
	for _, a := range b.order {
		for _, p := range a.proxies {
			if p.Hidden() {
				continue
			}
			out = append(out, Drawable{
				MeshID:   p.meshID,
				EntityID: a.entity.ID(),
				Shape:    p.shape,
				Size:     p.size,
				Vertices: p.vertices,
				Color:    p.color,
				Opacity:  p.opacity,
				Matrix:   p.transform.Matrix(),
			})
		}
	}
	return out
}

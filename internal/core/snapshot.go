package core

import (
	"sync"
	"sync/atomic"
	"time"

	"restep/internal/core/collision"
	"restep/internal/geom"
)

// EntitySnapshot is an immutable copy of one entity for readers off the
// core thread. Value types only.
type EntitySnapshot struct {
	ID             uint64         `json:"id"`
	Tag            string         `json:"tag,omitempty"`
	Position       geom.Vector2   `json:"position"`
	Rotation       float64        `json:"rotation"`
	Scale          geom.Vector2   `json:"scale"`
	Velocity       geom.Vector2   `json:"velocity"`
	Opacity        float64        `json:"opacity"`
	Collider       string         `json:"collider,omitempty"`
	BBox           collision.BBox `json:"bbox"`
	Lifetime       float64        `json:"lifetime"`
	Age            float64        `json:"age"`
	PendingDestroy bool           `json:"pendingDestroy"`
}

// TickStats summarizes the last completed tick.
type TickStats struct {
	Tick       uint64        `json:"tick"`
	DeltaTime  float64       `json:"dt"`
	Live       int           `json:"live"`
	Candidates int           `json:"candidates"`
	Overlaps   int           `json:"overlaps"`
	Spawned    int           `json:"spawned"`
	Reaped     int           `json:"reaped"`
	Duration   time.Duration `json:"durationNs"`
}

// WorldSnapshot is the complete state published after a tick.
type WorldSnapshot struct {
	Sequence  uint64           `json:"sequence"`
	Timestamp time.Time        `json:"timestamp"`
	Tick      uint64           `json:"tick"`
	SimTime   float64          `json:"simTime"`
	Entities  []EntitySnapshot `json:"entities"`
	Stats     TickStats        `json:"stats"`
}

// Clone returns a deep copy safe to hold indefinitely.
func (s *WorldSnapshot) Clone() WorldSnapshot {
	out := *s
	out.Entities = make([]EntitySnapshot, len(s.Entities))
	copy(out.Entities, s.Entities)
	return out
}

// Find returns the snapshot of one entity.
func (s *WorldSnapshot) Find(id uint64) (EntitySnapshot, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return EntitySnapshot{}, false
}

// SnapshotPool triple-buffers world snapshots so the core thread can
// publish while readers copy the previous one. Slices keep their capacity
// across ticks.
type SnapshotPool struct {
	slots    [3]snapshotSlot
	writeIdx uint32 // atomic - producer index
	readIdx  uint32 // atomic - last published index
	sequence uint64 // atomic - monotonic sequence
}

type snapshotSlot struct {
	mu   sync.RWMutex
	snap WorldSnapshot
}

// NewSnapshotPool pre-allocates room for capacity entities per slot.
func NewSnapshotPool(capacity int) *SnapshotPool {
	p := &SnapshotPool{}
	for i := range p.slots {
		p.slots[i].snap.Entities = make([]EntitySnapshot, 0, capacity)
	}
	return p
}

// AcquireWrite locks and resets the next slot (producer only). Every call
// must be followed by PublishWrite.
func (p *SnapshotPool) AcquireWrite() *WorldSnapshot {
	idx := (atomic.LoadUint32(&p.writeIdx) + 1) % 3
	atomic.StoreUint32(&p.writeIdx, idx)

	slot := &p.slots[idx]
	slot.mu.Lock()
	slot.snap.Entities = slot.snap.Entities[:0]
	slot.snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	slot.snap.Timestamp = time.Now()
	return &slot.snap
}

// PublishWrite unlocks the slot from AcquireWrite and makes it the latest.
func (p *SnapshotPool) PublishWrite() {
	idx := atomic.LoadUint32(&p.writeIdx)
	p.slots[idx].mu.Unlock()
	atomic.StoreUint32(&p.readIdx, idx)
}

// AcquireRead returns a copy of the latest published snapshot. Before the
// first publish it is the empty snapshot with Sequence 0.
func (p *SnapshotPool) AcquireRead() WorldSnapshot {
	slot := &p.slots[atomic.LoadUint32(&p.readIdx)]
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	return slot.snap.Clone()
}

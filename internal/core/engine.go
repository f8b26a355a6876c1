// Package core runs the simulation: entities, the core thread that ticks
// them, and the snapshot and event plumbing around it.
//
// One mutex, the core lock, guards the live list, the broadphase index and
// every entity field. The core thread holds it for a whole tick and then
// waits on a condition variable over the same mutex until Pulse wakes it,
// so simulation runs at the frame driver's cadence and all mutation is
// serialized.
package core

import (
	"fmt"
	"log"
	"sync"
	"time"

	"restep/internal/core/collision"
	"restep/internal/core/spatial"
	"restep/internal/metrics"
)

// TickFunc is a per-tick subscriber. It runs on the core thread with the
// lock held, after input and before entities advance.
type TickFunc func(dt float64, live []*Entity)

// InputSource is advanced once per tick, before subscribers run.
type InputSource interface {
	Update()
}

// EngineConfig configures the engine.
type EngineConfig struct {
	MaxEntities int
	Broadphase  spatial.Strategy
	MaxDelta    time.Duration // upper bound on one tick's dt; 0 disables
	Clock       Clock
	IDs         *IDAllocator
	Input       InputSource
	EventLog    *EventLog
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxEntities: 4096,
		Broadphase:  spatial.StrategyPairwise,
		MaxDelta:    250 * time.Millisecond,
	}
}

// Engine is the core thread and the state it owns.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	clock       Clock
	ids         *IDAllocator
	input       InputSource
	eventLog    *EventLog
	partitioner spatial.Partitioner
	strategy    spatial.Strategy
	maxEntities int
	maxDelta    float64

	live        []*Entity
	byID        map[uint64]*Entity
	pending     []*Entity // admitted during a tick, joined at its end
	doomed      []*Entity
	subscribers []TickFunc

	running bool
	inTick  bool
	done    chan struct{}

	lastTick  time.Time
	simTime   float64
	tickCount uint64
	stats     TickStats

	unhandledSeen map[string]bool
	primaryWarned bool
	snapshots     *SnapshotPool
}

// NewEngine creates a stopped engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = DefaultEngineConfig().MaxEntities
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.IDs == nil {
		cfg.IDs = NewIDAllocator()
	}

	partitioner, err := spatial.New(cfg.Broadphase, cfg.MaxEntities)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		clock:         cfg.Clock,
		ids:           cfg.IDs,
		input:         cfg.Input,
		eventLog:      cfg.EventLog,
		partitioner:   partitioner,
		strategy:      cfg.Broadphase,
		maxEntities:   cfg.MaxEntities,
		maxDelta:      cfg.MaxDelta.Seconds(),
		live:          make([]*Entity, 0, 64),
		byID:          make(map[uint64]*Entity, 64),
		lastTick:      cfg.Clock.Now(),
		unhandledSeen: make(map[string]bool),
		snapshots:     NewSnapshotPool(64),
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// IDs returns the allocator entities for this engine should draw from.
func (e *Engine) IDs() *IDAllocator { return e.ids }

// NewEntity creates an entity with an ID from the engine's allocator. It is
// not admitted.
func (e *Engine) NewEntity(opts EntityOptions) *Entity {
	return NewEntity(e.ids, opts)
}

// Start launches the core thread. The first tick runs immediately; each
// later tick runs once per Pulse.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.lastTick = e.clock.Now()
	e.done = make(chan struct{})
	e.mu.Unlock()

	go e.run()

	log.Printf("🎮 Simulation engine started (broadphase=%s, max=%d)", e.partitionerName(), e.maxEntities)
}

// run is the core thread.
func (e *Engine) run() {
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		close(e.done)
	}()

	for e.running {
		e.tickLocked()
		if !e.running {
			return
		}
		e.cond.Wait()
	}
}

// Pulse wakes the core thread for one tick. If a tick is in progress the
// call blocks until the thread is waiting again.
func (e *Engine) Pulse() {
	e.mu.Lock()
	e.cond.Signal()
	e.mu.Unlock()
}

// Stop ends the core thread after its current tick and waits for it to
// exit. There is no pause; a stopped engine may be started again.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cond.Broadcast()
	done := e.done
	e.mu.Unlock()

	<-done
	log.Println("🛑 Simulation engine stopped")
}

// Running reports whether the core thread is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Step runs one tick on the calling goroutine. It is for manual driving
// and fails while the core thread is running.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	e.tickLocked()
	return nil
}

// Lock acquires the core lock. Engine satisfies sync.Locker so
// collaborators such as the render bridge can read entity fields safely.
func (e *Engine) Lock() { e.mu.Lock() }

// Unlock releases the core lock.
func (e *Engine) Unlock() { e.mu.Unlock() }

// Do runs fn with the core lock held.
func (e *Engine) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Subscribe adds a per-tick subscriber.
func (e *Engine) Subscribe(fn TickFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// AddObject admits an entity into the live list and the broadphase in one
// step. The spawn time is stamped here.
func (e *Engine) AddObject(ent *Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.AddObjectLocked(ent)
}

// AddObjectLocked is AddObject for callers already holding the lock,
// including hooks on the core thread. Entities added during a tick join
// the live list when the tick ends.
func (e *Engine) AddObjectLocked(ent *Entity) error {
	if ent == nil {
		return ErrNilEntity
	}
	if ent.admitted {
		return fmt.Errorf("%w: entity %d", ErrAlreadyAdmitted, ent.id)
	}
	if len(e.live)+len(e.pending) >= e.maxEntities {
		metrics.RecordAdmissionRejected()
		log.Printf("⚠️ Entity limit reached (%d), rejecting entity %d", e.maxEntities, ent.id)
		return fmt.Errorf("%w (%d)", ErrEntityLimit, e.maxEntities)
	}

	ent.admitted = true
	ent.pendingDestroy = false
	ent.expired = false
	if e.inTick {
		e.pending = append(e.pending, ent)
		return nil
	}
	e.admitLocked(ent)
	return nil
}

// RemoveObject runs the entity's dispose hooks and removes it from the
// live list and the broadphase. It reports whether the entity was live.
func (e *Engine) RemoveObject(ent *Entity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.RemoveObjectLocked(ent)
}

// RemoveObjectLocked is RemoveObject for callers holding the lock. During
// a tick a live entity is only marked and is reaped before the tick ends,
// while one added earlier in the same tick is disposed at once.
func (e *Engine) RemoveObjectLocked(ent *Entity) bool {
	if ent == nil || !ent.admitted {
		return false
	}
	if e.inTick {
		if e.dropPendingLocked(ent) {
			return true
		}
		ent.Destroy()
		return true
	}
	if _, ok := e.byID[ent.id]; !ok {
		// admitted but still pending cannot happen outside a tick
		return false
	}
	e.disposeLocked(ent, "removed")
	return true
}

// GetObject returns a live entity by ID. Its fields must only be touched
// under the lock.
func (e *Engine) GetObject(id uint64) (*Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ObjectLocked(id)
}

// ObjectLocked is GetObject for callers holding the lock.
func (e *Engine) ObjectLocked(id uint64) (*Entity, bool) {
	ent, ok := e.byID[id]
	return ent, ok
}

// LiveLocked returns the live list. The slice is owned by the engine and
// is only valid while the lock is held.
func (e *Engine) LiveLocked() []*Entity {
	return e.live
}

// Len returns the number of live entities.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCount
}

// SimTime returns the accumulated simulation time in seconds.
func (e *Engine) SimTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}

// Stats returns the summary of the last tick.
func (e *Engine) Stats() TickStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Partitioner exposes the broadphase, e.g. to pick the primary body of a
// single-primary partitioner. Only use it under the lock.
func (e *Engine) Partitioner() spatial.Partitioner { return e.partitioner }

// EventLog returns the configured event log, which may be nil.
func (e *Engine) EventLog() *EventLog { return e.eventLog }

// GetSnapshot returns a copy of the latest world snapshot without taking
// the core lock.
func (e *Engine) GetSnapshot() WorldSnapshot {
	return e.snapshots.AcquireRead()
}

// tickLocked runs one tick. The caller holds the lock.
func (e *Engine) tickLocked() {
	start := time.Now()

	now := e.clock.Now()
	dt := now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	if dt < 0 {
		dt = 0
	}
	if e.maxDelta > 0 && dt > e.maxDelta {
		dt = e.maxDelta
	}
	e.simTime += dt
	e.tickCount++
	e.inTick = true

	stats := TickStats{Tick: e.tickCount, DeltaTime: dt}

	if e.input != nil {
		callHook("input", 0, e.input.Update)
	}

	for _, fn := range e.subscribers {
		callHook("subscriber", 0, func() { fn(dt, e.live) })
	}

	for _, ent := range e.live {
		ent.Advance(dt, e.simTime)
	}

	e.checkPrimaryLocked()
	pairs := e.partitioner.ForEachCandidatePair(e.narrowPhase)
	stats.Candidates = pairs.Candidates
	stats.Overlaps = pairs.Confirmed

	stats.Reaped = e.reapLocked()
	e.inTick = false

	stats.Spawned = len(e.pending)
	for i, ent := range e.pending {
		e.pending[i] = nil
		if ent.pendingDestroy {
			// destroyed before it ever joined
			stats.Spawned--
			e.disposeLocked(ent, "destroyed")
			continue
		}
		e.admitLocked(ent)
	}
	e.pending = e.pending[:0]

	stats.Live = len(e.live)
	stats.Duration = time.Since(start)
	e.stats = stats
	e.produceSnapshot()

	metrics.RecordTick(stats.Duration, stats.Live)
	metrics.RecordPairs(stats.Candidates, stats.Overlaps)
	if e.eventLog != nil {
		metrics.UpdateEventLogDropped(e.eventLog.GetDroppedCount())
	}
}

// narrowPhase resolves one broadphase candidate and notifies both sides.
func (e *Engine) narrowPhase(a, b spatial.Body) bool {
	ea, eb := a.(*Entity), b.(*Entity)

	hit, err := collision.Overlap(ea.collider, eb.collider)
	if err != nil {
		e.reportUnhandled(ea, eb, err)
		return false
	}
	if !hit {
		return false
	}

	ea.notifyOverlap(eb)
	eb.notifyOverlap(ea)

	e.eventLog.EmitSimple(EventTypeOverlap, e.tickCount, e.simTime, ea.id, OverlapPayload{
		Other:     eb.id,
		Kind:      ea.collider.Kind().String(),
		OtherKind: eb.collider.Kind().String(),
	})
	return true
}

// checkPrimaryLocked warns once when a single-primary broadphase has
// bodies but no primary, since it then tests no pairs at all.
func (e *Engine) checkPrimaryLocked() {
	sp, ok := e.partitioner.(*spatial.SinglePrimary)
	if !ok || sp.Primary() != nil || len(e.live) < 2 || e.primaryWarned {
		return
	}
	e.primaryWarned = true
	log.Printf("⚠️ Broadphase %s has no primary body, collisions are not tested", spatial.StrategySinglePrimary)
}

// reportUnhandled logs each unhandled kind pair once and counts every hit.
func (e *Engine) reportUnhandled(a, b *Entity, err error) {
	pair := a.collider.Kind().String() + "/" + b.collider.Kind().String()
	metrics.RecordUnhandledPair(pair)
	if !e.unhandledSeen[pair] {
		e.unhandledSeen[pair] = true
		log.Printf("⚠️ Collision between %d and %d treated as no overlap: %v", a.id, b.id, err)
	}
}

// reapLocked disposes every entity marked for destruction. Dispose hooks
// may mark further entities, so it repeats until nothing is left.
func (e *Engine) reapLocked() int {
	reaped := 0
	for {
		e.doomed = e.doomed[:0]
		for _, ent := range e.live {
			if ent.pendingDestroy {
				e.doomed = append(e.doomed, ent)
			}
		}
		if len(e.doomed) == 0 {
			return reaped
		}
		for i, ent := range e.doomed {
			reason := "destroyed"
			if ent.expired {
				reason = "expired"
			}
			e.disposeLocked(ent, reason)
			e.doomed[i] = nil
			reaped++
		}
	}
}

func (e *Engine) admitLocked(ent *Entity) {
	ent.admitted = true
	ent.spawnTime = e.simTime
	ent.age = 0
	ent.invalidated = true

	e.live = append(e.live, ent)
	e.byID[ent.id] = ent
	e.partitioner.Add(ent)

	metrics.RecordSpawn()
	payload := SpawnPayload{
		Tag:      ent.tag,
		X:        ent.Position().X,
		Y:        ent.Position().Y,
		Lifetime: ent.lifetime,
	}
	if ent.collider != nil {
		payload.Collider = ent.collider.Kind().String()
	}
	e.eventLog.EmitSimple(EventTypeSpawn, e.tickCount, e.simTime, ent.id, payload)
}

// dropPendingLocked disposes an entity added earlier in the current tick
// before it ever reaches the live list. It reports false when the entity
// is not pending.
func (e *Engine) dropPendingLocked(ent *Entity) bool {
	for i, other := range e.pending {
		if other != ent {
			continue
		}
		copy(e.pending[i:], e.pending[i+1:])
		e.pending[len(e.pending)-1] = nil
		e.pending = e.pending[:len(e.pending)-1]
		e.disposeLocked(ent, "removed")
		return true
	}
	return false
}

// disposeLocked runs the dispose hooks, then removes the entity from the
// live list and the broadphase in that order.
func (e *Engine) disposeLocked(ent *Entity, reason string) {
	if ent.disposing {
		return
	}
	ent.disposing = true
	ent.dispose()

	for i, other := range e.live {
		if other == ent {
			copy(e.live[i:], e.live[i+1:])
			e.live[len(e.live)-1] = nil
			e.live = e.live[:len(e.live)-1]
			break
		}
	}
	delete(e.byID, ent.id)
	e.partitioner.Remove(ent)
	ent.admitted = false
	ent.disposing = false

	metrics.RecordDestroy(reason)
	e.eventLog.EmitSimple(EventTypeDestroy, e.tickCount, e.simTime, ent.id, DestroyPayload{
		Reason: reason,
		Age:    ent.age,
	})
}

// produceSnapshot publishes the post-tick state for lock-free readers.
func (e *Engine) produceSnapshot() {
	snap := e.snapshots.AcquireWrite()
	snap.Tick = e.tickCount
	snap.SimTime = e.simTime
	snap.Stats = e.stats

	for _, ent := range e.live {
		s := EntitySnapshot{
			ID:             ent.id,
			Tag:            ent.tag,
			Position:       ent.Position(),
			Rotation:       ent.Rotation(),
			Scale:          ent.Scale(),
			Velocity:       ent.velocity,
			Opacity:        ent.opacity,
			Lifetime:       ent.lifetime,
			Age:            ent.age,
			PendingDestroy: ent.pendingDestroy,
		}
		if ent.collider != nil {
			s.Collider = ent.collider.Kind().String()
			s.BBox = ent.collider.BBox()
		}
		snap.Entities = append(snap.Entities, s)
	}

	e.snapshots.PublishWrite()
}

func (e *Engine) partitionerName() spatial.Strategy {
	if e.strategy == "" {
		return spatial.StrategyPairwise
	}
	return e.strategy
}

package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"restep/internal/core/spatial"
	"restep/internal/geom"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, cfg EngineConfig) (*Engine, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	cfg.Clock = clock
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine, clock
}

// step advances the clock by d and runs one tick
func step(t *testing.T, e *Engine, clock *ManualClock, d time.Duration) {
	t.Helper()
	clock.Advance(d)
	require.NoError(t, e.Step())
}

func circleAt(e *Engine, x, y, r float64) *Entity {
	opts := DefaultEntityOptions()
	opts.Position = geom.Vec(x, y)
	ent := e.NewEntity(opts)
	ent.AttachCircle(r, false)
	return ent
}

// TestNewEngine verifies construction for each broadphase strategy
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name     string
		strategy spatial.Strategy
		wantErr  bool
	}{
		{"default", "", false},
		{"pairwise", spatial.StrategyPairwise, false},
		{"sweep", spatial.StrategySweepAndPrune, false},
		{"single", spatial.StrategySinglePrimary, false},
		{"unknown", "octree", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.Broadphase = tt.strategy
			engine, err := NewEngine(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, engine.TickCount())
			assert.Zero(t, engine.Len())
		})
	}
}

// TestLifetimeExpiry checks an entity is flagged and gone on the first tick
// where simulated time reaches spawn time plus lifetime
func TestLifetimeExpiry(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())
	step(t, engine, clock, 500*time.Millisecond)
	require.Equal(t, 0.5, engine.SimTime())

	opts := DefaultEntityOptions()
	opts.Lifetime = 2.0
	ent := engine.NewEntity(opts)
	ent.AttachBox(geom.Vec(5, 5))

	disposed := 0
	ent.OnDispose(func(self *Entity) {
		disposed++
		_, live := engine.ObjectLocked(self.ID())
		assert.True(t, live, "dispose runs before removal")
		assert.True(t, engine.Partitioner().Has(self.ID()))
	})

	require.NoError(t, engine.AddObject(ent))
	assert.Equal(t, 0.5, ent.SpawnTime())

	for i := 0; i < 3; i++ {
		step(t, engine, clock, 500*time.Millisecond)
		assert.False(t, ent.PendingDestroy(), "tick %d", i+1)
		_, ok := engine.GetObject(ent.ID())
		assert.True(t, ok)
	}

	step(t, engine, clock, 500*time.Millisecond)
	assert.Equal(t, 2.5, engine.SimTime())
	assert.True(t, ent.PendingDestroy())
	assert.True(t, ent.Expired())
	assert.Equal(t, 2.0, ent.Age())
	assert.Equal(t, 1, disposed)

	_, ok := engine.GetObject(ent.ID())
	assert.False(t, ok, "absent from the live list")
	assert.False(t, engine.Partitioner().Has(ent.ID()), "absent from the broadphase")
	assert.Zero(t, engine.Len())
	assert.Equal(t, 1, engine.Stats().Reaped)
}

// TestLifetimeBoundaries covers immortal and zero lifetimes
func TestLifetimeBoundaries(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	immortal := engine.NewEntity(DefaultEntityOptions())
	opts := DefaultEntityOptions()
	opts.Lifetime = 0
	flash := engine.NewEntity(opts)

	require.NoError(t, engine.AddObject(immortal))
	require.NoError(t, engine.AddObject(flash))

	step(t, engine, clock, 0)
	assert.True(t, flash.PendingDestroy(), "zero lifetime expires on the first tick")
	assert.Equal(t, 1, engine.Len())

	for i := 0; i < 100; i++ {
		step(t, engine, clock, time.Second)
	}
	assert.False(t, immortal.PendingDestroy())
	assert.True(t, immortal.Immortal())
	assert.Equal(t, 1, engine.Len())
}

// TestOverlapNotifiesBothSides checks each side hears about the other once
func TestOverlapNotifiesBothSides(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 15, 0, 10)
	far := circleAt(engine, 500, 0, 10)

	seen := map[uint64][]uint64{}
	record := func(self, other *Entity) {
		seen[self.ID()] = append(seen[self.ID()], other.ID())
	}
	for _, ent := range []*Entity{a, b, far} {
		ent.OnOverlap(record)
		require.NoError(t, engine.AddObject(ent))
	}

	step(t, engine, clock, 16*time.Millisecond)

	assert.Equal(t, []uint64{b.ID()}, seen[a.ID()])
	assert.Equal(t, []uint64{a.ID()}, seen[b.ID()])
	assert.Empty(t, seen[far.ID()])
	assert.Equal(t, 1, engine.Stats().Overlaps)
}

// TestPendingDestroyStillNotified checks lifecycle races do not suppress
// notifications
func TestPendingDestroyStillNotified(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 5, 0, 10)
	hits := 0
	b.OnOverlap(func(self, other *Entity) { hits++ })
	require.NoError(t, engine.AddObject(a))
	require.NoError(t, engine.AddObject(b))

	a.Destroy()
	step(t, engine, clock, 16*time.Millisecond)

	assert.Equal(t, 1, hits)
	_, ok := engine.GetObject(a.ID())
	assert.False(t, ok)
}

type recordingInput struct{ log *[]string }

func (r recordingInput) Update() { *r.log = append(*r.log, "input") }

// TestTickOrder verifies the phase order inside one tick
func TestTickOrder(t *testing.T) {
	var order []string
	cfg := DefaultEngineConfig()
	cfg.Input = recordingInput{log: &order}
	engine, clock := newTestEngine(t, cfg)

	engine.Subscribe(func(dt float64, live []*Entity) {
		order = append(order, "subscriber")
		assert.Len(t, live, 2)
	})

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 5, 0, 10)
	a.OnTick(func(self *Entity, dt float64) { order = append(order, "tick") })
	a.OnOverlap(func(self, other *Entity) {
		order = append(order, "overlap")
		self.Destroy()
	})
	a.OnDispose(func(self *Entity) { order = append(order, "dispose") })
	require.NoError(t, engine.AddObject(a))
	require.NoError(t, engine.AddObject(b))

	step(t, engine, clock, 16*time.Millisecond)

	assert.Equal(t, []string{"input", "subscriber", "tick", "overlap", "dispose"}, order)
	assert.Equal(t, 1, engine.Len())
}

// TestAdvanceMovesEntities checks velocity integration through the engine
func TestAdvanceMovesEntities(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	opts := DefaultEntityOptions()
	opts.Velocity = geom.Vec(10, -4)
	opts.AngularVelocity = 1
	ent := engine.NewEntity(opts)
	require.NoError(t, engine.AddObject(ent))

	step(t, engine, clock, 500*time.Millisecond)
	assert.True(t, ent.Position().ApproxEqual(geom.Vec(5, -2), 1e-12))
	assert.InDelta(t, 0.5, ent.Rotation(), 1e-12)
}

// TestMaxDeltaClamp checks a long stall is bounded
func TestMaxDeltaClamp(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	step(t, engine, clock, 10*time.Second)
	assert.Equal(t, 0.25, engine.SimTime())
	assert.Equal(t, 0.25, engine.Stats().DeltaTime)
}

// TestAddRemoveTransactional verifies the live list and broadphase agree
func TestAddRemoveTransactional(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxEntities = 2
	engine, _ := newTestEngine(t, cfg)

	a := circleAt(engine, 0, 0, 5)
	disposed := 0
	a.OnDispose(func(*Entity) { disposed++ })

	require.NoError(t, engine.AddObject(a))
	assert.True(t, engine.Partitioner().Has(a.ID()))
	assert.True(t, a.Admitted())

	err := engine.AddObject(a)
	assert.ErrorIs(t, err, ErrAlreadyAdmitted)
	assert.ErrorIs(t, engine.AddObject(nil), ErrNilEntity)

	require.NoError(t, engine.AddObject(circleAt(engine, 1, 1, 1)))
	err = engine.AddObject(circleAt(engine, 2, 2, 1))
	assert.True(t, errors.Is(err, ErrEntityLimit))
	assert.Equal(t, 2, engine.Len())

	assert.True(t, engine.RemoveObject(a))
	assert.Equal(t, 1, disposed)
	assert.False(t, engine.Partitioner().Has(a.ID()))
	_, ok := engine.GetObject(a.ID())
	assert.False(t, ok)
	assert.False(t, engine.RemoveObject(a), "second removal is a no-op")

	require.NoError(t, engine.AddObject(a), "a removed entity may be admitted again")
	assert.False(t, a.PendingDestroy())
}

// TestHooksMutateDuringTick checks admissions and removals from hooks
func TestHooksMutateDuringTick(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())
	step(t, engine, clock, 200*time.Millisecond)

	var spawned *Entity
	engine.Subscribe(func(dt float64, live []*Entity) {
		if spawned != nil {
			return
		}
		spawned = circleAt(engine, 100, 100, 5)
		require.NoError(t, engine.AddObjectLocked(spawned))
		_, visible := engine.ObjectLocked(spawned.ID())
		assert.False(t, visible, "joins when the tick ends")
	})

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 5, 0, 10)
	a.OnOverlap(func(self, other *Entity) {
		assert.True(t, engine.RemoveObjectLocked(other))
	})
	require.NoError(t, engine.AddObject(a))
	require.NoError(t, engine.AddObject(b))

	step(t, engine, clock, 200*time.Millisecond)

	require.NotNil(t, spawned)
	_, ok := engine.GetObject(spawned.ID())
	assert.True(t, ok)
	assert.True(t, engine.Partitioner().Has(spawned.ID()))
	assert.Equal(t, 0.4, spawned.SpawnTime())
	assert.Zero(t, spawned.Age(), "not advanced in the tick that spawned it")

	_, ok = engine.GetObject(b.ID())
	assert.False(t, ok, "removed during the tick that marked it")

	stats := engine.Stats()
	assert.Equal(t, 1, stats.Spawned)
	assert.Equal(t, 1, stats.Reaped)
	assert.Equal(t, 2, stats.Live)
}

// TestAddThenRemoveInSameTick checks an entity removed in the tick that
// added it is disposed and never becomes visible
func TestAddThenRemoveInSameTick(t *testing.T) {
	for _, remove := range []string{"remove", "destroy"} {
		t.Run(remove, func(t *testing.T) {
			engine, clock := newTestEngine(t, DefaultEngineConfig())
			require.NoError(t, engine.AddObject(circleAt(engine, 0, 0, 5)))

			var child *Entity
			disposed := 0
			engine.Subscribe(func(dt float64, live []*Entity) {
				if child != nil {
					return
				}
				child = circleAt(engine, 50, 50, 5)
				child.OnDispose(func(*Entity) { disposed++ })
				require.NoError(t, engine.AddObjectLocked(child))
				if remove == "remove" {
					assert.True(t, engine.RemoveObjectLocked(child))
				} else {
					child.Destroy()
				}
			})

			step(t, engine, clock, 100*time.Millisecond)

			require.NotNil(t, child)
			assert.Equal(t, 1, disposed)
			_, ok := engine.GetObject(child.ID())
			assert.False(t, ok)
			assert.False(t, engine.Partitioner().Has(child.ID()))
			for _, s := range engine.GetSnapshot().Entities {
				assert.NotEqual(t, child.ID(), s.ID)
			}

			stats := engine.Stats()
			assert.Equal(t, 0, stats.Spawned)
			assert.Equal(t, 1, stats.Live)

			require.NoError(t, engine.AddObject(child), "a disposed entity may be admitted again")
			assert.Equal(t, 2, engine.Len())
		})
	}
}

// TestSinglePrimaryBroadphase checks the single strategy pairs the primary
// body with the others and tests nothing without one
func TestSinglePrimaryBroadphase(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Broadphase = spatial.StrategySinglePrimary
	engine, clock := newTestEngine(t, cfg)

	a := circleAt(engine, 0, 0, 10)
	b := circleAt(engine, 5, 0, 10)
	c := circleAt(engine, 8, 0, 10)
	hits := 0
	a.OnOverlap(func(self, other *Entity) { hits++ })
	for _, ent := range []*Entity{a, b, c} {
		require.NoError(t, engine.AddObject(ent))
	}

	step(t, engine, clock, 100*time.Millisecond)
	assert.Zero(t, engine.Stats().Overlaps, "no primary, no pairs")
	assert.Zero(t, hits)

	engine.Do(func() {
		sp, ok := engine.Partitioner().(*spatial.SinglePrimary)
		require.True(t, ok)
		sp.SetPrimary(a)
	})

	step(t, engine, clock, 100*time.Millisecond)
	stats := engine.Stats()
	assert.Equal(t, 2, stats.Overlaps, "b and c overlap each other but only pairs with a count")
	assert.Equal(t, 2, hits)

	assert.True(t, engine.RemoveObject(a))
	step(t, engine, clock, 100*time.Millisecond)
	assert.Zero(t, engine.Stats().Overlaps, "removing the primary clears it")
}

// TestHookPanicIsRecovered verifies a bad hook does not stop the loop
func TestHookPanicIsRecovered(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())

	opts := DefaultEntityOptions()
	opts.Velocity = geom.Vec(1, 0)
	ent := engine.NewEntity(opts)
	ent.OnTick(func(*Entity, float64) { panic("boom") })
	require.NoError(t, engine.AddObject(ent))

	step(t, engine, clock, 250*time.Millisecond)
	step(t, engine, clock, 250*time.Millisecond)

	assert.Equal(t, uint64(2), engine.TickCount())
	assert.Equal(t, 0.5, ent.Position().X)
}

// TestSnapshotAfterTick checks the published world state
func TestSnapshotAfterTick(t *testing.T) {
	engine, clock := newTestEngine(t, DefaultEngineConfig())
	assert.Zero(t, engine.GetSnapshot().Sequence)

	opts := DefaultEntityOptions()
	opts.Tag = "rock"
	opts.Position = geom.Vec(3, 4)
	ent := engine.NewEntity(opts)
	ent.AttachOrientedBox(geom.Vec(2, 1))
	require.NoError(t, engine.AddObject(ent))

	step(t, engine, clock, 100*time.Millisecond)

	snap := engine.GetSnapshot()
	assert.Equal(t, uint64(1), snap.Tick)
	require.Len(t, snap.Entities, 1)

	got, ok := snap.Find(ent.ID())
	require.True(t, ok)
	assert.Equal(t, "rock", got.Tag)
	assert.Equal(t, geom.Vec(3, 4), got.Position)
	assert.Equal(t, "oriented_box", got.Collider)
	assert.Equal(t, geom.Vec(1, 3), got.BBox.Min)

	snap.Entities[0].Tag = "mutated"
	again := engine.GetSnapshot()
	assert.Equal(t, "rock", again.Entities[0].Tag, "readers get copies")
}

// TestStartPulseStop drives the core thread through pulses
func TestStartPulseStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, _ := newTestEngine(t, DefaultEngineConfig())
	engine.Start()
	engine.Start()

	require.Eventually(t, func() bool { return engine.TickCount() == 1 },
		time.Second, time.Millisecond, "first tick runs on start")
	assert.ErrorIs(t, engine.Step(), ErrRunning)

	for want := uint64(2); want <= 4; want++ {
		engine.Pulse()
		require.Eventually(t, func() bool { return engine.TickCount() == want },
			time.Second, time.Millisecond)
	}

	engine.Stop()
	assert.False(t, engine.Running())
	engine.Stop()

	ticks := engine.TickCount()
	engine.Pulse()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, engine.TickCount(), "no ticks after stop")
}

// TestConcurrentAccess exercises admission and reads against the core thread
func TestConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, err := NewEngine(DefaultEngineConfig())
	require.NoError(t, err)
	engine.Start()

	stop := make(chan struct{})
	driver := make(chan struct{})
	go func() {
		defer close(driver)
		for {
			select {
			case <-stop:
				return
			default:
				engine.Pulse()
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ent := circleAt(engine, float64(i*10), float64(j), 4)
				assert.NoError(t, engine.AddObject(ent))
				if j%3 == 0 {
					engine.Do(ent.Destroy)
				}
				engine.GetSnapshot()
				if j%5 == 0 {
					engine.RemoveObject(ent)
				}
			}
		}(i)
	}
	wg.Wait()

	close(stop)
	<-driver
	engine.Stop()
	assert.Greater(t, engine.TickCount(), uint64(0))
}

package render

import (
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"restep/internal/core"
	"restep/internal/geom"
)

const eps = 1e-9

var viewport = geom.Vec(100, 100)

func entityAt(ids *core.IDAllocator, x, y float64) *core.Entity {
	opts := core.DefaultEntityOptions()
	opts.Position = geom.Vec(x, y)
	return core.NewEntity(ids, opts)
}

func rect(b *Bridge) *Proxy {
	return b.NewProxy(ProxyOptions{Shape: ShapeRect, Size: geom.Vec(5, 5), Color: color.RGBA{R: 255, A: 255}})
}

// TestPublishCopiesInvalidatedEntities checks the first publish lands the
// entity's transform in its proxy and clears the flag
func TestPublishCopiesInvalidatedEntities(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 10, 20)
	p := rect(b)
	require.NoError(t, b.Bind(ent, p))

	assert.True(t, p.Hidden(), "nothing drawn before the first publish")
	assert.Empty(t, b.Proxies())

	stats := b.PublishLatest()
	assert.Equal(t, 1, stats.Associations)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Shown)
	assert.False(t, ent.Invalidated())

	drawn := b.Proxies()
	require.Len(t, drawn, 1)
	assert.Equal(t, p.MeshID(), drawn[0].MeshID)
	assert.Equal(t, ent.ID(), drawn[0].EntityID)
	assert.True(t, drawn[0].Center().ApproxEqual(geom.Vec(-0.8, 0.6), eps), "got %v", drawn[0].Center())
}

// TestPublishIsIdempotent checks a second publish without changes does
// nothing
func TestPublishIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 10, 20)
	require.NoError(t, b.Bind(ent, rect(b)))

	b.PublishLatest()
	first := b.Proxies()

	stats := b.PublishLatest()
	assert.Zero(t, stats.Updated)
	assert.Equal(t, first, b.Proxies())

	ent.SetPosition(geom.Vec(50, 50))
	stats = b.PublishLatest()
	assert.Equal(t, 1, stats.Updated)
	assert.True(t, b.Proxies()[0].Center().ApproxEqual(geom.Zero, eps))
}

// TestInactiveProxiesAreHidden checks only the active proxy is drawn and
// switching the active proxy repaints without an entity change
func TestInactiveProxiesAreHidden(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 10, 20)
	walk, jump := rect(b), rect(b)
	require.NoError(t, b.Bind(ent, walk, jump))

	stats := b.PublishLatest()
	assert.Equal(t, 1, stats.Shown)
	assert.Equal(t, 1, stats.Hidden)
	assert.False(t, walk.Hidden())
	assert.True(t, jump.Hidden())

	active, ok := b.Active(ent)
	require.True(t, ok)
	assert.Equal(t, walk.MeshID(), active)

	require.NoError(t, b.SetActive(ent, jump.MeshID()))
	assert.False(t, ent.Invalidated())
	stats = b.PublishLatest()
	assert.Equal(t, 1, stats.Updated)
	assert.True(t, walk.Hidden())
	assert.False(t, jump.Hidden())

	drawn := b.Proxies()
	require.Len(t, drawn, 1)
	assert.Equal(t, jump.MeshID(), drawn[0].MeshID)

	assert.Error(t, b.SetActive(ent, 9999))
}

// TestTransparentProxyIsHidden checks opacity zero is not drawn
func TestTransparentProxyIsHidden(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 10, 20)
	p := rect(b)
	require.NoError(t, b.Bind(ent, p))

	ent.SetOpacity(0)
	b.PublishLatest()
	assert.True(t, p.Hidden())
	assert.Empty(t, b.Proxies())
}

// TestBindErrors checks argument validation
func TestBindErrors(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 0, 0)

	assert.ErrorIs(t, b.Bind(nil, rect(b)), core.ErrNilEntity)
	assert.Error(t, b.Bind(ent))
	assert.Error(t, b.SetActive(ent, 1), "unbound")

	_, ok := b.Active(ent)
	assert.False(t, ok)
}

// TestMeshIDsAreUnique checks the bridge allocates its own IDs
func TestMeshIDsAreUnique(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	seen := map[uint64]bool{}
	for i := 0; i < 10; i++ {
		id := rect(b).MeshID()
		assert.False(t, seen[id])
		assert.NotZero(t, id)
		seen[id] = true
	}
}

// TestDisposeDetaches checks reaping an entity drops its association
// through the dispose hook
func TestDisposeDetaches(t *testing.T) {
	engine, err := core.NewEngine(core.EngineConfig{Clock: core.NewManualClock(time.Unix(0, 0))})
	require.NoError(t, err)
	b := NewBridge(engine, viewport)

	opts := core.DefaultEntityOptions()
	opts.Lifetime = 0
	short := engine.NewEntity(opts)
	long := engine.NewEntity(core.DefaultEntityOptions())
	require.NoError(t, b.Bind(short, rect(b)))
	require.NoError(t, b.Bind(long, rect(b)))
	require.NoError(t, engine.AddObject(short))
	require.NoError(t, engine.AddObject(long))
	require.Equal(t, 2, b.Len())

	require.NoError(t, engine.Step())
	assert.False(t, b.Bound(short))
	assert.True(t, b.Bound(long))
	assert.Equal(t, 1, b.Len())

	engine.RemoveObject(long)
	assert.Zero(t, b.Len())
	assert.Zero(t, b.PublishLatest().Associations)
}

// TestSetViewport checks a resize repaints every association
func TestSetViewport(t *testing.T) {
	var mu sync.Mutex
	b := NewBridge(&mu, viewport)
	ent := entityAt(core.NewIDAllocator(), 50, 50)
	require.NoError(t, b.Bind(ent, rect(b)))
	b.PublishLatest()

	b.SetViewport(geom.Vec(200, 200))
	assert.Equal(t, 1, b.PublishLatest().Updated)
	assert.True(t, b.Proxies()[0].Center().ApproxEqual(geom.Vec(-0.5, 0.5), eps))
}

// TestPublishAlongsideTicks runs the core thread and a publisher together
func TestPublishAlongsideTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, err := core.NewEngine(core.DefaultEngineConfig())
	require.NoError(t, err)
	b := NewBridge(engine, viewport)

	opts := core.DefaultEntityOptions()
	opts.Velocity = geom.Vec(10, 0)
	ent := engine.NewEntity(opts)
	require.NoError(t, b.Bind(ent, rect(b)))
	require.NoError(t, engine.AddObject(ent))

	engine.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.PublishLatest()
			_ = b.Proxies()
		}
	}()
	for i := 0; i < 200; i++ {
		engine.Pulse()
	}
	<-done
	engine.Stop()

	b.PublishLatest()
	require.Len(t, b.Proxies(), 1)
}

// TestOutline checks shapes map through the proxy matrix
func TestOutline(t *testing.T) {
	d := Drawable{Shape: ShapeRect, Size: geom.Vec(1, 2), Matrix: geom.Identity()}
	assert.Equal(t, []geom.Vector2{
		geom.Vec(-1, -2), geom.Vec(1, -2), geom.Vec(1, 2), geom.Vec(-1, 2),
	}, d.Outline(0))

	c := Drawable{Shape: ShapeCircle, Size: geom.Vec(3, 0), Matrix: geom.Translation(geom.Vec(1, 1))}
	pts := c.Outline(8)
	require.Len(t, pts, 8)
	for _, p := range pts {
		assert.InDelta(t, 3, p.Dist(geom.Vec(1, 1)), eps)
	}

	poly := Drawable{Shape: ShapePolygon, Vertices: []geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}, Matrix: geom.Identity()}
	assert.Len(t, poly.Outline(0), 3)
	assert.Equal(t, "polygon", ShapePolygon.String())
}

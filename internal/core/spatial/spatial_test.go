package spatial

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"restep/internal/core/collision"
	"restep/internal/geom"
)

// testBody is a Body that owns its own pose
type testBody struct {
	id       uint64
	pos      geom.Vector2
	rot      float64
	collider *collision.Collider
}

func (b *testBody) ID() uint64                    { return b.id }
func (b *testBody) Collider() *collision.Collider { return b.collider }
func (b *testBody) Position() geom.Vector2        { return b.pos }
func (b *testBody) Rotation() float64             { return b.rot }
func (b *testBody) Scale() geom.Vector2           { return geom.One }

func boxBody(id uint64, x, y, half float64) *testBody {
	b := &testBody{id: id, pos: geom.Vec(x, y)}
	b.collider = collision.NewBox(b, geom.Vec(half, half))
	return b
}

func circleBody(id uint64, x, y, r float64) *testBody {
	b := &testBody{id: id, pos: geom.Vec(x, y)}
	b.collider = collision.NewCircle(b, r, false)
	return b
}

type pairKey [2]uint64

func key(a, b Body) pairKey {
	if a.ID() > b.ID() {
		a, b = b, a
	}
	return pairKey{a.ID(), b.ID()}
}

func collect(p Partitioner) ([]pairKey, PairStats) {
	var pairs []pairKey
	stats := p.ForEachCandidatePair(func(a, b Body) bool {
		pairs = append(pairs, key(a, b))
		return a.Collider().TestOverlap(b.Collider())
	})
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs, stats
}

func bruteForce(bodies []*testBody) []pairKey {
	var pairs []pairKey
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if a.collider == nil || b.collider == nil {
				continue
			}
			if a.collider.BBox().Overlaps(b.collider.BBox()) {
				pairs = append(pairs, key(a, b))
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

func strategies() map[string]func() Partitioner {
	return map[string]func() Partitioner{
		"pairwise": func() Partitioner { return NewPairwise(8) },
		"sweep":    func() Partitioner { return NewSweepAndPrune(8) },
	}
}

// TestCandidatePairs verifies only overlapping proxies reach the callback
func TestCandidatePairs(t *testing.T) {
	for name, build := range strategies() {
		t.Run(name, func(t *testing.T) {
			p := build()
			a := boxBody(1, 0, 0, 10)
			b := boxBody(2, 15, 5, 10)
			c := boxBody(3, 200, 0, 10)
			d := circleBody(4, 30, 0, 6)
			for _, body := range []*testBody{a, b, c, d} {
				p.Add(body)
			}
			p.Add(a)
			assert.Equal(t, 4, p.Len(), "duplicate add is ignored")

			pairs, stats := collect(p)
			assert.Equal(t, []pairKey{{1, 2}, {2, 4}}, pairs)
			assert.Equal(t, 4, stats.Bodies)
			assert.Equal(t, 2, stats.Candidates)
			assert.Equal(t, 2, stats.Confirmed)
		})
	}
}

// TestTouchingProxiesArePaired checks the inclusive boundary on both axes
func TestTouchingProxiesArePaired(t *testing.T) {
	for name, build := range strategies() {
		t.Run(name, func(t *testing.T) {
			p := build()
			p.Add(boxBody(1, 0, 0, 10))
			p.Add(boxBody(2, 20, 0, 10))
			p.Add(boxBody(3, -5, 20, 10))

			pairs, _ := collect(p)
			assert.Equal(t, []pairKey{{1, 2}, {1, 3}}, pairs)
		})
	}
}

// TestBodiesWithoutColliderAreSkipped checks registration without pairing
func TestBodiesWithoutColliderAreSkipped(t *testing.T) {
	for name, build := range strategies() {
		t.Run(name, func(t *testing.T) {
			p := build()
			bare := &testBody{id: 7}
			p.Add(bare)
			p.Add(boxBody(1, 0, 0, 10))

			assert.True(t, p.Has(7))
			pairs, stats := collect(p)
			assert.Empty(t, pairs)
			assert.Equal(t, 1, stats.Bodies)

			bare.collider = collision.NewCircle(bare, 5, false)
			pairs, _ = collect(p)
			assert.Equal(t, []pairKey{{1, 7}}, pairs, "attaching later joins the next pass")
		})
	}
}

// TestRemove verifies removed bodies leave the candidate set
func TestRemove(t *testing.T) {
	for name, build := range strategies() {
		t.Run(name, func(t *testing.T) {
			p := build()
			a := boxBody(1, 0, 0, 10)
			b := boxBody(2, 5, 0, 10)
			c := boxBody(3, 10, 0, 10)
			p.Add(a)
			p.Add(b)
			p.Add(c)

			p.Remove(b)
			p.Remove(b)
			assert.False(t, p.Has(2))
			assert.Equal(t, 2, p.Len())

			pairs, _ := collect(p)
			assert.Equal(t, []pairKey{{1, 3}}, pairs)
		})
	}
}

// TestSinglePrimary checks that only pairs with the primary are produced
func TestSinglePrimary(t *testing.T) {
	p := NewSinglePrimary(4)
	ship := boxBody(1, 0, 0, 10)
	rockA := boxBody(2, 12, 0, 5)
	rockB := boxBody(3, 14, 0, 5)
	far := boxBody(4, 100, 0, 5)
	p.Add(rockA)
	p.Add(rockB)
	p.Add(far)

	pairs, _ := collect(p)
	assert.Empty(t, pairs, "no primary, no pairs")

	p.SetPrimary(ship)
	assert.True(t, p.Has(1))
	pairs, stats := collect(p)
	assert.Equal(t, []pairKey{{1, 2}, {1, 3}}, pairs, "rocks are never paired with each other")
	assert.Equal(t, 4, stats.Bodies)

	p.Remove(ship)
	assert.Nil(t, p.Primary())
	pairs, _ = collect(p)
	assert.Empty(t, pairs)
}

// TestNew maps strategy names to implementations
func TestNew(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     any
	}{
		{StrategyPairwise, &Pairwise{}},
		{"", &Pairwise{}},
		{StrategySweepAndPrune, &SweepAndPrune{}},
		{StrategySinglePrimary, &SinglePrimary{}},
	}

	for _, tt := range tests {
		p, err := New(tt.strategy, 4)
		require.NoError(t, err)
		assert.IsType(t, tt.want, p)
	}

	_, err := New("quadtree", 4)
	assert.Error(t, err)
}

// TestSweepTracksMotion checks the persistent endpoint list across passes,
// with the insertion sort and with a full sort every pass
func TestSweepTracksMotion(t *testing.T) {
	for _, insSort := range []bool{true, false} {
		t.Run(fmt.Sprintf("insertion sort %v", insSort), func(t *testing.T) {
			sap := NewSweepAndPrune(16)
			sap.SetInsertionSort(insSort)
			pw := NewPairwise(16)
			rng := rand.New(rand.NewSource(7))

			bodies := make([]*testBody, 16)
			for i := range bodies {
				bodies[i] = boxBody(uint64(i+1), rng.Float64()*200, rng.Float64()*200, 12)
				sap.Add(bodies[i])
				pw.Add(bodies[i])
			}

			for pass := 0; pass < 20; pass++ {
				for _, b := range bodies {
					b.pos = b.pos.Add(geom.Vec((rng.Float64()-0.5)*15, (rng.Float64()-0.5)*15))
				}
				got, _ := collect(sap)
				want, _ := collect(pw)
				require.Equal(t, want, got, "pass %d", pass)
			}
		})
	}
}

// TestPartitionersMatchBruteForce checks every strategy reports exactly the
// overlapping proxies, each pair once
func TestPartitionersMatchBruteForce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 24).Draw(t, "n")
		bodies := make([]*testBody, n)
		for i := range bodies {
			id := uint64(i + 1)
			x := rapid.Float64Range(-100, 100).Draw(t, fmt.Sprintf("x%d", i))
			y := rapid.Float64Range(-100, 100).Draw(t, fmt.Sprintf("y%d", i))
			size := rapid.Float64Range(1, 30).Draw(t, fmt.Sprintf("size%d", i))
			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("kind%d", i)) {
			case 0:
				bodies[i] = boxBody(id, x, y, size)
			case 1:
				bodies[i] = circleBody(id, x, y, size)
			case 2:
				b := &testBody{id: id, pos: geom.Vec(x, y), rot: rapid.Float64Range(0, 6.3).Draw(t, fmt.Sprintf("rot%d", i))}
				b.collider = collision.NewOrientedBox(b, geom.Vec(size, size/2))
				bodies[i] = b
			default:
				bodies[i] = &testBody{id: id, pos: geom.Vec(x, y)}
			}
		}
		want := bruteForce(bodies)

		for name, build := range strategies() {
			p := build()
			for _, b := range bodies {
				p.Add(b)
			}
			got, stats := collect(p)
			if len(got) != len(want) {
				t.Fatalf("%s: got %d pairs, want %d", name, len(got), len(want))
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("%s: pair %d is %v, want %v", name, i, got[i], want[i])
				}
			}
			if stats.Candidates != len(want) {
				t.Fatalf("%s: stats report %d candidates, want %d", name, stats.Candidates, len(want))
			}
		}
	})
}

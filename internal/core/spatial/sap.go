package spatial

import "sort"

// SweepAndPrune projects bounding proxies onto the X axis, keeps the
// interval endpoints sorted across passes and sweeps them to find
// overlapping intervals. Intervals that overlap on X are then checked on Y
// before the callback sees them.
//
// The endpoint list persists between passes, so with small per-tick motion
// insertion sort runs in close to linear time.
//
// Origin: Baraff & Witkin (SIGGRAPH 1992)
type SweepAndPrune struct {
	set        bodySet
	scratch    []proxy
	slot       map[uint64]int // body ID -> index into scratch for this pass
	endpoints  []endpoint
	active     []int
	dirty      bool
	useInsSort bool
}

// endpoint is one end of a bounding interval on the sweep axis.
type endpoint struct {
	value float64
	id    uint64
	isMin bool
}

// before orders endpoints by value; at equal values interval starts sort
// first so touching intervals are still reported.
func (e endpoint) before(o endpoint) bool {
	if e.value != o.value {
		return e.value < o.value
	}
	return e.isMin && !o.isMin
}

// NewSweepAndPrune creates a sweep-and-prune partitioner.
func NewSweepAndPrune(capacity int) *SweepAndPrune {
	return &SweepAndPrune{
		set:        newBodySet(capacity),
		scratch:    make([]proxy, 0, capacity),
		slot:       make(map[uint64]int, capacity),
		endpoints:  make([]endpoint, 0, capacity*2),
		active:     make([]int, 0, capacity/4+1),
		useInsSort: true,
	}
}

func (s *SweepAndPrune) Add(b Body) {
	if s.set.add(b) {
		s.dirty = true
	}
}

func (s *SweepAndPrune) Remove(b Body) {
	if s.set.remove(b) {
		s.dirty = true
	}
}

func (s *SweepAndPrune) Has(id uint64) bool { return s.set.has(id) }
func (s *SweepAndPrune) Len() int           { return len(s.set.bodies) }

// SetInsertionSort toggles the temporal-coherence sort. When disabled every
// pass uses the standard library sort.
func (s *SweepAndPrune) SetInsertionSort(enabled bool) {
	s.useInsSort = enabled
}

// ForEachCandidatePair sweeps the sorted endpoints and calls fn for every
// pair whose proxies overlap on both axes.
func (s *SweepAndPrune) ForEachCandidatePair(fn PairFunc) PairStats {
	s.scratch = sample(s.set.bodies, s.scratch)
	stats := PairStats{Bodies: len(s.scratch)}

	clear(s.slot)
	for i, p := range s.scratch {
		s.slot[p.body.ID()] = i
	}

	if s.dirty || len(s.endpoints) != 2*len(s.scratch) {
		s.rebuild()
	}
	for i := range s.endpoints {
		ep := &s.endpoints[i]
		idx, ok := s.slot[ep.id]
		if !ok {
			// a collider was swapped out between passes
			s.rebuild()
			break
		}
		if ep.isMin {
			ep.value = s.scratch[idx].box.Min.X
		} else {
			ep.value = s.scratch[idx].box.Max.X
		}
	}

	if s.useInsSort {
		insertionSortEndpoints(s.endpoints)
	} else {
		sort.Slice(s.endpoints, func(i, j int) bool {
			return s.endpoints[i].before(s.endpoints[j])
		})
	}

	s.active = s.active[:0]
	for _, ep := range s.endpoints {
		idx := s.slot[ep.id]
		if !ep.isMin {
			for i, other := range s.active {
				if other == idx {
					s.active[i] = s.active[len(s.active)-1]
					s.active = s.active[:len(s.active)-1]
					break
				}
			}
			continue
		}

		cur := s.scratch[idx]
		for _, other := range s.active {
			o := s.scratch[other]
			if !cur.box.Overlaps(o.box) {
				continue
			}
			stats.Candidates++
			if fn(o.body, cur.body) {
				stats.Confirmed++
			}
		}
		s.active = append(s.active, idx)
	}
	return stats
}

// rebuild regenerates the endpoint list from the current sample.
func (s *SweepAndPrune) rebuild() {
	s.endpoints = s.endpoints[:0]
	for _, p := range s.scratch {
		id := p.body.ID()
		s.endpoints = append(s.endpoints,
			endpoint{value: p.box.Min.X, id: id, isMin: true},
			endpoint{value: p.box.Max.X, id: id, isMin: false},
		)
	}
	s.dirty = false
}

// insertionSortEndpoints is O(n) for nearly sorted input.
func insertionSortEndpoints(eps []endpoint) {
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && key.before(eps[j]) {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}

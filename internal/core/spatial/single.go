package spatial

// SinglePrimary pairs one primary body against every other body and never
// tests the others among themselves. It fits scenes with a single actor,
// such as a player ship against everything else.
type SinglePrimary struct {
	set     bodySet
	primary Body
	scratch []proxy
}

// NewSinglePrimary creates a partitioner with no primary set.
func NewSinglePrimary(capacity int) *SinglePrimary {
	return &SinglePrimary{
		set:     newBodySet(capacity),
		scratch: make([]proxy, 0, capacity),
	}
}

// SetPrimary selects the body every pair is built around. The body is
// registered if it is not already. A nil primary yields no pairs.
func (s *SinglePrimary) SetPrimary(b Body) {
	if b != nil {
		s.set.add(b)
	}
	s.primary = b
}

// Primary returns the current primary body, or nil.
func (s *SinglePrimary) Primary() Body { return s.primary }

func (s *SinglePrimary) Add(b Body) { s.set.add(b) }

func (s *SinglePrimary) Remove(b Body) {
	if s.set.remove(b) && s.primary != nil && s.primary.ID() == b.ID() {
		s.primary = nil
	}
}

func (s *SinglePrimary) Has(id uint64) bool { return s.set.has(id) }
func (s *SinglePrimary) Len() int           { return len(s.set.bodies) }

// ForEachCandidatePair calls fn(primary, other) for every other body whose
// proxy overlaps the primary's.
func (s *SinglePrimary) ForEachCandidatePair(fn PairFunc) PairStats {
	var stats PairStats
	if s.primary == nil || s.primary.Collider() == nil {
		return stats
	}

	s.scratch = sample(s.set.bodies, s.scratch)
	stats.Bodies = len(s.scratch)
	box := s.primary.Collider().BBox()
	id := s.primary.ID()

	for _, other := range s.scratch {
		if other.body.ID() == id || !box.Overlaps(other.box) {
			continue
		}
		stats.Candidates++
		if fn(s.primary, other.body) {
			stats.Confirmed++
		}
	}
	return stats
}

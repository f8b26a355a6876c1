package spatial

// Pairwise tests every unordered pair of bounding proxies. It is O(n²) and
// has no spatial structure; for the object counts this engine runs it is
// the default.
type Pairwise struct {
	set     bodySet
	scratch []proxy
}

// NewPairwise creates an empty pairwise partitioner.
func NewPairwise(capacity int) *Pairwise {
	return &Pairwise{
		set:     newBodySet(capacity),
		scratch: make([]proxy, 0, capacity),
	}
}

func (p *Pairwise) Add(b Body)         { p.set.add(b) }
func (p *Pairwise) Remove(b Body)      { p.set.remove(b) }
func (p *Pairwise) Has(id uint64) bool { return p.set.has(id) }
func (p *Pairwise) Len() int           { return len(p.set.bodies) }

// ForEachCandidatePair calls fn for each pair whose proxies overlap, in
// insertion order.
func (p *Pairwise) ForEachCandidatePair(fn PairFunc) PairStats {
	p.scratch = sample(p.set.bodies, p.scratch)
	stats := PairStats{Bodies: len(p.scratch)}

	for i := 0; i < len(p.scratch); i++ {
		a := p.scratch[i]
		for j := i + 1; j < len(p.scratch); j++ {
			b := p.scratch[j]
			if !a.box.Overlaps(b.box) {
				continue
			}
			stats.Candidates++
			if fn(a.body, b.body) {
				stats.Confirmed++
			}
		}
	}
	return stats
}

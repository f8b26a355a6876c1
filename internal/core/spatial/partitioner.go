// Package spatial provides the broadphase partitioners that turn the live
// body population into candidate pairs for narrow-phase testing.
//
// Every partitioner is a superset filter on bounding proxies: a pair whose
// proxies do not overlap is never handed to the callback, and every pair
// whose proxies do overlap is handed to it exactly once per pass.
//
// Partitioners are not safe for concurrent use. The engine serializes Add,
// Remove and ForEachCandidatePair under its core lock.
package spatial

import (
	"fmt"

	"restep/internal/core/collision"
)

// Body is anything the broadphase can index. A nil collider keeps the body
// registered but excludes it from pairing.
type Body interface {
	ID() uint64
	Collider() *collision.Collider
}

// PairFunc receives a candidate pair and reports whether the narrow phase
// confirmed the overlap.
type PairFunc func(a, b Body) bool

// PairStats summarizes one ForEachCandidatePair pass.
type PairStats struct {
	Bodies     int // bodies with a collider considered in the pass
	Candidates int // pairs handed to the callback
	Confirmed  int // pairs the callback confirmed
}

// Partitioner is the broadphase contract shared by all strategies.
type Partitioner interface {
	Add(b Body)
	Remove(b Body)
	Has(id uint64) bool
	Len() int
	ForEachCandidatePair(fn PairFunc) PairStats
}

// Strategy names a partitioner implementation.
type Strategy string

const (
	StrategyPairwise      Strategy = "pairwise"
	StrategySweepAndPrune Strategy = "sweep"
	StrategySinglePrimary Strategy = "single"
)

// New builds the partitioner for a configured strategy. capacity only
// sizes internal buffers.
func New(strategy Strategy, capacity int) (Partitioner, error) {
	switch strategy {
	case StrategyPairwise, "":
		return NewPairwise(capacity), nil
	case StrategySweepAndPrune:
		return NewSweepAndPrune(capacity), nil
	case StrategySinglePrimary:
		return NewSinglePrimary(capacity), nil
	default:
		return nil, fmt.Errorf("spatial: unknown broadphase strategy %q", strategy)
	}
}

// bodySet keeps bodies in insertion order with O(1) membership checks.
// Removal preserves order so passes are deterministic.
type bodySet struct {
	bodies []Body
	index  map[uint64]int
}

func newBodySet(capacity int) bodySet {
	return bodySet{
		bodies: make([]Body, 0, capacity),
		index:  make(map[uint64]int, capacity),
	}
}

func (s *bodySet) add(b Body) bool {
	if b == nil {
		return false
	}
	if _, ok := s.index[b.ID()]; ok {
		return false
	}
	s.index[b.ID()] = len(s.bodies)
	s.bodies = append(s.bodies, b)
	return true
}

func (s *bodySet) remove(b Body) bool {
	if b == nil {
		return false
	}
	i, ok := s.index[b.ID()]
	if !ok {
		return false
	}
	copy(s.bodies[i:], s.bodies[i+1:])
	s.bodies[len(s.bodies)-1] = nil
	s.bodies = s.bodies[:len(s.bodies)-1]
	delete(s.index, b.ID())
	for j := i; j < len(s.bodies); j++ {
		s.index[s.bodies[j].ID()] = j
	}
	return true
}

func (s *bodySet) has(id uint64) bool {
	_, ok := s.index[id]
	return ok
}

// proxy pairs a body with the bounding box sampled at the start of a pass.
type proxy struct {
	body Body
	box  collision.BBox
}

// sample collects the collider-bearing bodies and their current boxes.
func sample(bodies []Body, dst []proxy) []proxy {
	dst = dst[:0]
	for _, b := range bodies {
		c := b.Collider()
		if c == nil {
			continue
		}
		dst = append(dst, proxy{body: b, box: c.BBox()})
	}
	return dst
}

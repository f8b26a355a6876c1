package input

import (
	"runtime"
	"sync/atomic"
)

// cacheLineSize is the typical CPU cache line size (64 bytes on x86-64)
const cacheLineSize = 64

// padding keeps the producer and consumer cursors on separate cache lines
type padding [cacheLineSize]byte

// Queue is a bounded lock-free MPSC ring buffer. Any number of goroutines
// may push; exactly one goroutine may pop.
//
// Each cell carries a sequence number so the consumer never observes a
// slot that a producer has claimed but not yet written.
//
// Origin: Vyukov bounded MPMC queue, reduced to a single consumer
type Queue[T any] struct {
	_pad0 padding

	head atomic.Uint64 // next slot to claim (producers)
	_pad1 padding

	tail atomic.Uint64 // next slot to read (consumer)
	_pad2 padding

	mask  uint64
	cells []cell[T]
}

type cell[T any] struct {
	seq  atomic.Uint64
	item T
}

// NewQueue creates a queue. capacity is rounded up to a power of 2, at
// least 2.
func NewQueue[T any](capacity int) *Queue[T] {
	size := 2
	for size < capacity {
		size <<= 1
	}

	q := &Queue[T]{
		mask:  uint64(size - 1),
		cells: make([]cell[T], size),
	}
	for i := range q.cells {
		q.cells[i].seq.Store(uint64(i))
	}
	return q
}

// TryPush adds an item. It returns false if the queue is full.
func (q *Queue[T]) TryPush(item T) bool {
	for {
		head := q.head.Load()
		c := &q.cells[head&q.mask]
		seq := c.seq.Load()

		switch {
		case seq == head:
			if q.head.CompareAndSwap(head, head+1) {
				c.item = item
				c.seq.Store(head + 1)
				return true
			}
		case seq < head:
			return false // full
		}
		// another producer won the slot, retry
		runtime.Gosched()
	}
}

// TryPop removes the oldest item. It returns false if nothing is ready.
// Single consumer only.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T

	tail := q.tail.Load()
	c := &q.cells[tail&q.mask]
	if c.seq.Load() != tail+1 {
		return zero, false
	}

	item := c.item
	c.item = zero
	c.seq.Store(tail + q.mask + 1)
	q.tail.Store(tail + 1)
	return item, true
}

// DrainTo pops up to len(buf) items into buf and returns how many were
// written.
func (q *Queue[T]) DrainTo(buf []T) int {
	n := 0
	for n < len(buf) {
		item, ok := q.TryPop()
		if !ok {
			break
		}
		buf[n] = item
		n++
	}
	return n
}

// Len returns the approximate number of queued items.
func (q *Queue[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return int(q.mask + 1)
}

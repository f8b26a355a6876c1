package core

import "sync/atomic"

// IDAllocator hands out unique, monotonically increasing identifiers.
// Zero is never returned. One allocator is owned per simulation context.
type IDAllocator struct {
	last atomic.Uint64
}

// NewIDAllocator creates an allocator whose first ID is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next identifier. Safe for concurrent use.
func (a *IDAllocator) Next() uint64 {
	return a.last.Add(1)
}

// Last returns the most recently issued identifier, or 0.
func (a *IDAllocator) Last() uint64 {
	return a.last.Load()
}

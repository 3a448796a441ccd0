// Package ringbuffer provides a fixed-capacity FIFO buffer that evicts the oldest element on overflow.
package ringbuffer

import "github.com/cinar/indicator/v2/helper"

// Ring adds size tracking and ordered copies on top of helper.Ring.
// It is not safe for concurrent use.
type Ring[T any] struct {
	ring     *helper.Ring[T]
	size     int
	capacity int
}

// New creates a ring holding at most capacity elements.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{ring: helper.NewRing[T](capacity), capacity: capacity}
}

// Push appends v, evicting the oldest element when full.
// It reports whether an element was evicted.
func (r *Ring[T]) Push(v T) bool {
	evicted := r.ring.IsFull()
	r.ring.Put(v)
	if !evicted {
		r.size++
	}
	return evicted
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Full reports whether the ring reached its capacity.
func (r *Ring[T]) Full() bool { return r.ring.IsFull() }

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.ring.At(r.size - 1), true
}

// Values returns a copy of the elements ordered oldest to newest.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.ring.At(i)
	}
	return out
}

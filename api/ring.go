// File: api/ring.go
// Package api defines the fast, lock-free ring buffer contract shared by
// core/concurrency's in-process ring and the completion pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Ring is a fixed-capacity, concurrent FIFO.
type Ring[T any] interface {
	// Enqueue adds item, returns false if the ring is full.
	Enqueue(item T) bool

	// Dequeue removes and returns the oldest item, false if empty.
	Dequeue() (T, bool)

	// Len returns the number of items currently in the ring.
	Len() int

	// Cap returns the fixed ring capacity.
	Cap() int
}

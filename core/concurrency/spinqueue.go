// File: core/concurrency/spinqueue.go
// Package concurrency provides a spinlock-guarded, growable FIFO used for
// the per-process op queues. It is backed by eapache/queue, a small
// ring-growable FIFO well suited to an unbounded, single-process queue
// without the overhead of container/list's per-element allocation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"github.com/eapache/queue"
)

// SpinQueue is a generic FIFO guarded by a Spinlock. Unlike the completion
// pipeline's fixed-size Ring, it grows on demand: op queues have
// no fixed capacity, only an eventual drain guarantee.
type SpinQueue[T any] struct {
	lock Spinlock
	q    *queue.Queue
}

// NewSpinQueue creates an empty queue.
func NewSpinQueue[T any]() *SpinQueue[T] {
	return &SpinQueue[T]{q: queue.New()}
}

// PushBack appends val to the tail.
func (s *SpinQueue[T]) PushBack(val T) {
	s.lock.Lock()
	s.q.Add(val)
	s.lock.Unlock()
}

// PopFront removes and returns the head item, ok=false if empty.
func (s *SpinQueue[T]) PopFront() (val T, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.q.Length() == 0 {
		return val, false
	}
	v := s.q.Remove()
	return v.(T), true
}

// PeekFront returns the head item without removing it, ok=false if empty.
func (s *SpinQueue[T]) PeekFront() (val T, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.q.Length() == 0 {
		return val, false
	}
	return s.q.Peek().(T), true
}

// Len returns the current length.
func (s *SpinQueue[T]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.q.Length()
}

// RemoveMatch scans front-to-back under the lock, removing and returning the
// first element for which match returns true. Used by expected-recv
// matching (peer, tag) and by cancel's queued-removal path.
func (s *SpinQueue[T]) RemoveMatch(match func(T) bool) (val T, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	n := s.q.Length()
	kept := make([]T, 0, n)
	var found T
	foundAt := -1
	for i := 0; i < n; i++ {
		item := s.q.Get(i).(T)
		if foundAt == -1 && match(item) {
			found = item
			foundAt = i
			continue
		}
		kept = append(kept, item)
	}
	if foundAt == -1 {
		return val, false
	}
	s.q = queue.New()
	for _, item := range kept {
		s.q.Add(item)
	}
	return found, true
}

// Each calls fn for every queued item, front to back, without removing
// anything. fn must not re-enter the SpinQueue.
func (s *SpinQueue[T]) Each(fn func(T)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	n := s.q.Length()
	for i := 0; i < n; i++ {
		fn(s.q.Get(i).(T))
	}
}

// DrainAll removes and returns every queued item, front to back.
func (s *SpinQueue[T]) DrainAll() []T {
	s.lock.Lock()
	defer s.lock.Unlock()
	n := s.q.Length()
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.q.Remove().(T))
	}
	return out
}

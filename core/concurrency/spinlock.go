// File: core/concurrency/spinlock.go
// Package concurrency provides the CAS-loop spinlock used to guard the
// per-process op queues (unexpected-op, expected-op, retry,
// accepted-addr, poll-addr, lookup-op queues).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a non-reentrant mutual-exclusion lock that busy-spins rather
// than parking a goroutine, matching the "serialised per-process by
// a spinlock" description of the copy-pool reservation path. It must never
// be held across a syscall, a memcpy of more than a few slots, or a
// callback into user code.
type Spinlock struct {
	state atomic.Uint32
}

// Lock spins until the lock is acquired.
func (s *Spinlock) Lock() {
	for !s.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (s *Spinlock) TryLock() bool {
	return s.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock.
func (s *Spinlock) Unlock() {
	s.state.Store(0)
}

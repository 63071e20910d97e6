// File: core/na/pipeline.go
// Package na implements the NA completion pipeline: a fixed-size lock-free
// fast path backed by a condvar-guarded spillover list.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package na

import (
	"container/list"
	"sync"
	"time"

	"github.com/momentics/na/api"
	"github.com/momentics/na/core/concurrency"
)

// fastQueueSize is the fixed MPMC fast path capacity: sized 1024.
const fastQueueSize = 1024

// pipeline is a context's completion queue: a fixed-size lock-free ring
// (fast path) backed by an unbounded spillover list guarded by a mutex and
// condition variable for overflow and cross-thread wakeups.
type pipeline struct {
	fast *concurrency.RingBuffer[*api.CompletionRecord]

	mu          sync.Mutex
	cond        *sync.Cond
	spill       *list.List
	spillLen    int64
	triggerWait int64
}

var _ api.CompletionSink = (*pipeline)(nil)

func newPipeline() *pipeline {
	p := &pipeline{
		fast:  concurrency.NewRingBuffer[*api.CompletionRecord](fastQueueSize),
		spill: list.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Add pushes rec onto the fast queue, falling back to the spillover list on
// overflow, then wakes any trigger() waiters.
func (p *pipeline) Add(rec *api.CompletionRecord) {
	if !p.fast.Enqueue(rec) {
		p.mu.Lock()
		p.spill.PushBack(rec)
		p.spillLen++
		p.mu.Unlock()
	}
	p.mu.Lock()
	waiting := p.triggerWait > 0
	p.mu.Unlock()
	if waiting {
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
	}
}

// Empty reports whether both the fast queue and the spillover are empty,
// the precondition context_destroy checks (BUSY otherwise).
func (p *pipeline) Empty() bool {
	if p.fast.Len() != 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spill.Len() == 0
}

// Depth returns the total number of records currently queued (ambient
// metrics; a spillover-length counter generalized to both halves).
func (p *pipeline) Depth() int {
	p.mu.Lock()
	n := p.spill.Len()
	p.mu.Unlock()
	return n + p.fast.Len()
}

// trigger pops up to maxCount records, invoking each's callback then its
// release hook in that order. It drains the fast queue, then
// the spillover, then — only if nothing was popped yet — waits on the
// condition variable for the remaining timeout.
func (p *pipeline) trigger(timeout time.Duration, maxCount int) (int, error) {
	deadline := time.Now().Add(timeout)
	count := 0

	drain := func() {
		for count < maxCount {
			if rec, ok := p.fast.Dequeue(); ok {
				rec.Invoke()
				count++
				continue
			}
			break
		}
		if count >= maxCount {
			return
		}
		p.mu.Lock()
		for count < maxCount && p.spill.Len() > 0 {
			front := p.spill.Front()
			p.spill.Remove(front)
			p.spillLen--
			p.mu.Unlock()
			front.Value.(*api.CompletionRecord).Invoke()
			count++
			p.mu.Lock()
		}
		p.mu.Unlock()
	}

	drain()
	if count > 0 {
		return count, nil
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, api.ErrTimeout
	}

	p.mu.Lock()
	p.triggerWait++
	timer := time.AfterFunc(remaining, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	for p.fast.Len() == 0 && p.spill.Len() == 0 && time.Now().Before(deadline) {
		p.cond.Wait()
	}
	p.triggerWait--
	p.mu.Unlock()
	timer.Stop()

	drain()
	if count == 0 {
		return 0, api.ErrTimeout
	}
	return count, nil
}

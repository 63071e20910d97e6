// File: core/na/context.go
// Package na implements the NA execution context: per-context completion
// pipeline, the per-context multi-progress lock, and suspension points.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package na

import (
	"time"

	"github.com/momentics/na/api"
)

// retryDrainer is implemented by plugins whose send path can queue on
// backpressure (a plugin-owned retry queue). core/na calls DrainRetries after
// every plugin Progress call it makes, not only after a notify event, per the Open
// Question decision recorded in DESIGN.md (retry queues must not stall
// under pure one-sided traffic).
type retryDrainer interface {
	DrainRetries()
}

// Context is an execution context attached to a Class. It owns exactly one
// completion pipeline; multiple contexts may coexist per class.
type Context struct {
	class *Class
	pipe  *pipeline
	lock  *progressLock
}

func newContext(c *Class) *Context {
	return &Context{class: c, pipe: newPipeline(), lock: newProgressLock()}
}

// Add implements api.CompletionSink so plugins can post completions
// directly against the context an operation was submitted through.
func (ctx *Context) Add(rec *api.CompletionRecord) {
	ctx.pipe.Add(rec)
}

// Progress drives the class's plugin for up to timeoutMs milliseconds,
// serialised per context by the multi-progress lock.
//
//  1. Increment the waiter count and attempt to become the progress owner.
//  2. If another thread owns progress, wait up to the remaining timeout.
//  3. Short-circuit: a non-empty completion queue returns SUCCESS without
//     entering the plugin.
//  4. Otherwise call the plugin's Progress(timeoutMs).
//  5. After the plugin's Progress returns, attempt a retry-queue drain
//     (Open Question decision: not gated on a notify event having fired).
//     The short-circuit and timeout returns do not drain.
func (ctx *Context) Progress(timeoutMs int) error {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeoutMs == 0 {
		timeout = 0
	}

	if !ctx.pipe.Empty() {
		return nil
	}

	if !ctx.lock.acquire(timeout) {
		return api.ErrTimeout
	}
	defer ctx.lock.release()

	if !ctx.pipe.Empty() {
		return nil
	}

	err := ctx.class.plugin.Progress(timeoutMs)

	if rd, ok := ctx.class.plugin.(retryDrainer); ok {
		rd.DrainRetries()
	}

	return err
}

// Trigger pops up to maxCount completion records, invoking each callback
// then its release hook, blocking up to timeoutMs only if nothing was
// immediately available.
func (ctx *Context) Trigger(timeoutMs, maxCount int) (int, error) {
	if maxCount <= 0 {
		maxCount = 1
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	return ctx.pipe.trigger(timeout, maxCount)
}

// Cancel forwards to the plugin.
func (ctx *Context) Cancel(op api.OpID) error {
	return ctx.class.plugin.Cancel(op)
}

// empty reports whether both completion-queue halves are empty, the
// precondition for context_destroy.
func (ctx *Context) empty() bool {
	return ctx.pipe.Empty()
}

// Depth exposes the completion-queue occupancy for debug probes.
func (ctx *Context) Depth() int {
	return ctx.pipe.Depth()
}

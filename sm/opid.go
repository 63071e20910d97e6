// File: sm/opid.go
// SM operation id: tracked completion state and reference ownership.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/na/api"
)

// opStatus is a bitset: distinct from the reference count, matching the
// explicit warning not to conflate the two.
type opStatus uint32

const (
	opQueued opStatus = 1 << iota
	opCompleted
	opCanceled
)

// opKind tags which vtable operation produced this op-id, so the progress
// loop and cancel logic know which queue and info type apply.
type opKind int

const (
	opKindLookup opKind = iota
	opKindSendUnexpected
	opKindRecvUnexpected
	opKindSendExpected
	opKindRecvExpected
	opKindPut
	opKindGet
)

// op is the concrete op-id. Instances are recycled through one pool shared
// by every kind once ref drops back to 1 after completion, giving the reuse
// semantics this type needs without an intrusive free-list pointer (this
// pool uses a plain slice guarded by a mutex instead of an intrusive link,
// a deliberate generalization: Go's GC makes an intrusive link pointer an
// unnecessary optimization here).
type op struct {
	status   atomic.Uint32
	refCount atomic.Int32

	// generation changes every time this slot is handed out by acquire,
	// so a handle captured before a completion can be told apart from a
	// handle into whatever operation now occupies the same recycled slot.
	generation uint64

	kind opKind
	sink api.CompletionSink
	cb   api.CompletionCallback
	arg  any

	peer     *Addr
	lookName string
	buf      []byte
	tag      uint32
	bufIndex int

	localHandle, remoteHandle   api.MemHandle
	localOffset, remoteOffset   uint64
	length                      uint64

	actualSize int
	info       api.CompletionInfo
	result     error
}

// Status returns the current bitset atomically.
func (o *op) Status() opStatus { return opStatus(o.status.Load()) }

// handle returns the api.OpID this instance's current generation should be
// addressed by. Wrapping the generation alongside the pointer lets Cancel
// tell a live reference apart from a stale one pointing at a slot that has
// since been recycled into an unrelated operation.
func (o *op) handle() opHandle { return opHandle{o: o, gen: o.generation} }

// opHandle is the concrete api.OpID this package hands callers. gen pins
// the handle to the generation active at acquire time so a handle kept past
// its op's completion and pool release cannot be mistaken for a handle into
// whatever later operation reused the same *op.
type opHandle struct {
	o   *op
	gen uint64
}

// resolve returns the underlying op only if h still names its current
// generation, and errBusy otherwise: this is the reuse guard -- a caller
// holding a handle whose op-id has already completed, been released, and
// been handed back out to a new operation gets BUSY rather than silently
// acting on an op-id that was never theirs.
func (h opHandle) resolve() (*op, error) {
	if h.o == nil || h.o.generation != h.gen {
		return nil, errBusy
	}
	return h.o, nil
}

func (o *op) setStatus(bit opStatus) {
	for {
		old := o.status.Load()
		next := old | uint32(bit)
		if o.status.CompareAndSwap(old, next) {
			return
		}
	}
}

func (o *op) clearStatus(bit opStatus) {
	for {
		old := o.status.Load()
		next := old &^ uint32(bit)
		if o.status.CompareAndSwap(old, next) {
			return
		}
	}
}

// addRef takes a new reference (queue insertion, callback attachment).
func (o *op) addRef() { o.refCount.Add(1) }

// dropRef releases a reference, returning the post-decrement count.
func (o *op) dropRef() int32 { return o.refCount.Add(-1) }

// complete clears the QUEUED bit and sets COMPLETED, then posts a record
// carrying info/result to the completion sink, preserving the mandatory
// callback-then-release ordering (Release here returns the op to its pool).
func (o *op) complete(pool *opPool, info api.CompletionInfo, result error) {
	o.info = info
	o.result = result
	o.clearStatus(opQueued)
	o.setStatus(opCompleted)

	rec := &api.CompletionRecord{
		Callback: o.cb,
		Info:     info,
		Result:   result,
		Arg:      o.arg,
		Release: func() {
			if o.dropRef() <= 1 {
				pool.release(o)
			}
		},
	}
	o.sink.Add(rec)
}

// opPool is a single reusable free list shared by every op kind; an op
// returns to it once completed and released down to one reference.
type opPool struct {
	mu      sync.Mutex
	free    []*op
	nextGen uint64
}

func newOpPool() *opPool { return &opPool{} }

// acquire returns a fresh or recycled op initialized for kind, with ref
// count 2: one for the caller, one for the queue it is about to join.
func (p *opPool) acquire(kind opKind) *op {
	p.mu.Lock()
	var o *op
	if n := len(p.free); n > 0 {
		o = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.nextGen++
	gen := p.nextGen
	p.mu.Unlock()

	if o == nil {
		o = &op{}
	}
	o.status.Store(0)
	o.refCount.Store(2)
	o.generation = gen
	o.kind = kind
	o.sink = nil
	o.cb = nil
	o.arg = nil
	o.peer = nil
	o.lookName = ""
	o.buf = nil
	o.tag = 0
	o.bufIndex = -1
	o.info = nil
	o.result = nil
	return o
}

// release returns a completed, ref-drained op to the pool, where the next
// acquire may hand the same *op back out under a new generation. A handle
// captured against the old generation resolves to errBusy from then on
// instead of reaching into whatever operation now owns the slot.
func (p *opPool) release(o *op) {
	p.mu.Lock()
	p.free = append(p.free, o)
	p.mu.Unlock()
}

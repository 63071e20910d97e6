// File: sm/ring.go
// Shared-memory header ring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// ringCapacity is the fixed slot count: 64 slots of 8-byte headers.
const ringCapacity = 64

// ringHeaderWords is the count of 32-bit words in the shared header: producer
// head, producer tail, consumer head, consumer tail, capacity, mask.
const ringHeaderWords = 6

// ringHeaderBytes is the byte size of the header region preceding the slots.
const ringHeaderBytes = ringHeaderWords * 4

// RingPageBytes is the total mmap size a ring buffer occupies, rounded up
// to the host's 4 KiB page.
const RingPageBytes = 4096

// Ring is an MPMC bounded queue of Header slots backed by raw shared
// memory so two processes mapping the same segment cooperate purely via
// atomics. It never allocates Go-managed pointers into the
// shared region; every index is a plain uint32 counter.
type Ring struct {
	mem []byte

	producerHead *uint32
	producerTail *uint32
	consumerHead *uint32
	consumerTail *uint32
	capacity     *uint32
	mask         *uint32

	slots *[ringCapacity]uint64
}

// mapRing interprets mem (at least RingPageBytes long) as a ring, without
// initializing it; used by a connector that did not create the segment.
func mapRing(mem []byte) (*Ring, error) {
	if len(mem) < RingPageBytes {
		return nil, fmt.Errorf("sm: ring segment too small: %d bytes", len(mem))
	}
	r := &Ring{mem: mem}
	base := unsafe.Pointer(&mem[0])
	r.producerHead = (*uint32)(unsafe.Add(base, 0))
	r.producerTail = (*uint32)(unsafe.Add(base, 4))
	r.consumerHead = (*uint32)(unsafe.Add(base, 8))
	r.consumerTail = (*uint32)(unsafe.Add(base, 12))
	r.capacity = (*uint32)(unsafe.Add(base, 16))
	r.mask = (*uint32)(unsafe.Add(base, 20))
	r.slots = (*[ringCapacity]uint64)(unsafe.Add(base, ringHeaderBytes))
	return r, nil
}

// initRing formats a freshly mapped segment as an empty ring of ringCapacity
// slots; called only by the side that created the shared segment.
func initRing(mem []byte) (*Ring, error) {
	r, err := mapRing(mem)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint32(r.producerHead, 0)
	atomic.StoreUint32(r.producerTail, 0)
	atomic.StoreUint32(r.consumerHead, 0)
	atomic.StoreUint32(r.consumerTail, 0)
	atomic.StoreUint32(r.capacity, ringCapacity)
	atomic.StoreUint32(r.mask, ringCapacity-1)
	for i := range r.slots {
		atomic.StoreUint64(&r.slots[i], 0)
	}
	return r, nil
}

func (r *Ring) idx(i uint32) uint32 { return i & atomic.LoadUint32(r.mask) }

// Push claims a slot by advancing the producer head, spins until it is its
// own turn to publish (predecessor's tail equals its claimed head), writes
// the header, then advances the producer tail. Returns false when full
// Push fails (returns false) when the queue is full.
func (r *Ring) Push(h Header) bool {
	for {
		head := atomic.LoadUint32(r.producerHead)
		tail := atomic.LoadUint32(r.consumerTail)
		if head-tail >= ringCapacity {
			return false
		}
		if atomic.CompareAndSwapUint32(r.producerHead, head, head+1) {
			slot := r.idx(head)
			atomic.StoreUint64(&r.slots[slot], uint64(h))
			for !atomic.CompareAndSwapUint32(r.producerTail, head, head+1) {
				// spin until predecessor publishes
			}
			return true
		}
	}
}

// Pop claims a slot from the consumer side mirroring Push, returning
// (0, false) when empty.
func (r *Ring) Pop() (Header, bool) {
	for {
		head := atomic.LoadUint32(r.consumerHead)
		tail := atomic.LoadUint32(r.producerTail)
		if head == tail {
			return 0, false
		}
		if atomic.CompareAndSwapUint32(r.consumerHead, head, head+1) {
			slot := r.idx(head)
			v := atomic.LoadUint64(&r.slots[slot])
			for !atomic.CompareAndSwapUint32(r.consumerTail, head, head+1) {
			}
			return Header(v), true
		}
	}
}

// Len reports the approximate occupancy, racy by construction against a
// concurrent peer process.
func (r *Ring) Len() int {
	return int(atomic.LoadUint32(r.producerTail) - atomic.LoadUint32(r.consumerTail))
}

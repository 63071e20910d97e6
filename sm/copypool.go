// File: sm/copypool.go
// Shared copy pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/na/core/concurrency"
)

const (
	poolSlots      = 64
	poolSlotBytes  = 4096
	poolBitmapPad  = 64 // one cache line
	PoolPageBytes  = poolBitmapPad + poolSlots*poolSlotBytes
	poolAllFreeVal = uint64(1<<poolSlots - 1)
)

// CopyPool is the shared bitmap-reserved buffer pool two peers use to stage
// message payloads. The reservation scan is serialised
// per-process by a spinlock for local fairness; correctness of the bit
// itself still depends on the cross-process CAS against the shared word.
type CopyPool struct {
	mem []byte

	avail *uint64 // shared atomic availability word, bit=1 means free
	slots unsafe.Pointer

	scanLock concurrency.Spinlock
}

// mapCopyPool interprets mem (at least PoolPageBytes long) as a copy pool
// without reinitializing the availability word.
func mapCopyPool(mem []byte) (*CopyPool, error) {
	if len(mem) < PoolPageBytes {
		return nil, fmt.Errorf("sm: copy pool segment too small: %d bytes", len(mem))
	}
	p := &CopyPool{mem: mem}
	base := unsafe.Pointer(&mem[0])
	p.avail = (*uint64)(base)
	p.slots = unsafe.Add(base, poolBitmapPad)
	return p, nil
}

// initCopyPool formats a freshly created segment with every slot free.
func initCopyPool(mem []byte) (*CopyPool, error) {
	p, err := mapCopyPool(mem)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint64(p.avail, poolAllFreeVal)
	return p, nil
}

func (p *CopyPool) slot(i int) []byte {
	base := unsafe.Add(p.slots, i*poolSlotBytes)
	return unsafe.Slice((*byte)(base), poolSlotBytes)
}

// Reserve scans bits LSB to MSB for the first free slot, CASing the whole
// availability word to claim it, then copies payload in. Returns
// ErrAgain if no slot is free.
func (p *CopyPool) Reserve(payload []byte) (int, error) {
	if len(payload) > poolSlotBytes {
		return -1, fmt.Errorf("sm: payload %d exceeds slot size %d", len(payload), poolSlotBytes)
	}

	p.scanLock.Lock()
	defer p.scanLock.Unlock()

	for {
		word := atomic.LoadUint64(p.avail)
		if word == 0 {
			return -1, errAgain
		}
		bit := trailingZeros64(word)
		next := word &^ (uint64(1) << uint(bit))
		if atomic.CompareAndSwapUint64(p.avail, word, next) {
			copy(p.slot(bit), payload)
			return bit, nil
		}
		// CAS lost to a cross-process reservation; retry the scan.
	}
}

// Release sets the bit back in the availability word with a load-and-CAS
// loop, retrying until no concurrent update intervenes.
func (p *CopyPool) Release(index int) {
	bit := uint64(1) << uint(index)
	for {
		old := atomic.LoadUint64(p.avail)
		next := old | bit
		if atomic.CompareAndSwapUint64(p.avail, old, next) {
			return
		}
	}
}

// Read copies n bytes out of slot index into dst.
func (p *CopyPool) Read(index int, dst []byte) {
	copy(dst, p.slot(index)[:len(dst)])
}

func trailingZeros64(x uint64) int {
	if x == 0 {
		return 64
	}
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// File: api/memhandle.go
// Package api defines the RMA memory-handle type and its wire format
// over shared memory.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"encoding/binary"
	"fmt"
)

// MemFlags encodes the permission a handle was registered with.
type MemFlags uint32

const (
	MemReadOnly MemFlags = 1 << iota
	MemWriteOnly
	MemReadWrite
)

func (f MemFlags) Readable() bool { return f&(MemReadOnly|MemReadWrite) != 0 }
func (f MemFlags) Writable() bool { return f&(MemWriteOnly|MemReadWrite) != 0 }

// Segment is one contiguous (base, length) span of a registered region.
// Base is only meaningful in the owning process; the remote side never
// dereferences it directly — the kernel interprets it during cross-process
// vector I/O.
type Segment struct {
	Base uintptr
	Len  uint64
}

// MemHandle is a vector of segments plus permission flags and total length
// It is the unit the RPC layer exchanges so a remote peer can
// name a memory region for put/get.
type MemHandle struct {
	Segments []Segment
	Flags    MemFlags
	Len      uint64
}

// Serialize renders the handle using a fixed wire format:
// <iovcnt:uint64><flags:uint64><len:uint64><iovcnt x (base:uint64, len:uint64)>
func (h MemHandle) Serialize() []byte {
	buf := make([]byte, 24+len(h.Segments)*16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(h.Segments)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Flags))
	binary.LittleEndian.PutUint64(buf[16:24], h.Len)
	off := 24
	for _, seg := range h.Segments {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(seg.Base))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], seg.Len)
		off += 16
	}
	return buf
}

// DeserializeMemHandle parses bytes produced by Serialize.
func DeserializeMemHandle(buf []byte) (MemHandle, error) {
	if len(buf) < 24 {
		return MemHandle{}, fmt.Errorf("memhandle: short buffer (%d bytes)", len(buf))
	}
	iovcnt := binary.LittleEndian.Uint64(buf[0:8])
	flags := binary.LittleEndian.Uint64(buf[8:16])
	length := binary.LittleEndian.Uint64(buf[16:24])
	want := 24 + int(iovcnt)*16
	if len(buf) < want {
		return MemHandle{}, fmt.Errorf("memhandle: truncated segment table: have %d want %d", len(buf), want)
	}
	segs := make([]Segment, iovcnt)
	off := 24
	for i := range segs {
		segs[i] = Segment{
			Base: uintptr(binary.LittleEndian.Uint64(buf[off : off+8])),
			Len:  binary.LittleEndian.Uint64(buf[off+8 : off+16]),
		}
		off += 16
	}
	return MemHandle{Segments: segs, Flags: MemFlags(flags), Len: length}, nil
}

// Translate walks the segment table to find the slice of segments spanning
// [offset, offset+length), trimming the first and last segment as needed
// offset ranges.
func (h MemHandle) Translate(offset, length uint64) ([]Segment, error) {
	if offset+length > h.Len {
		return nil, NewError(ErrCodeInvalidArg, "offset+length exceeds handle length")
	}
	var out []Segment
	var walked uint64
	remaining := length
	for _, seg := range h.Segments {
		segEnd := walked + seg.Len
		if offset < segEnd && remaining > 0 {
			segStart := uint64(0)
			if offset > walked {
				segStart = offset - walked
			}
			avail := seg.Len - segStart
			take := avail
			if take > remaining {
				take = remaining
			}
			out = append(out, Segment{Base: seg.Base + uintptr(segStart), Len: take})
			remaining -= take
		}
		walked = segEnd
		if remaining == 0 {
			break
		}
	}
	if remaining != 0 {
		return nil, NewError(ErrCodeInvalidArg, "offset/length not contained in handle segments")
	}
	return out, nil
}

package api_test

import (
	"testing"

	"github.com/momentics/na/api"
)

func TestMemHandle_SerializeRoundTrip(t *testing.T) {
	h := api.MemHandle{
		Segments: []api.Segment{
			{Base: 0x1000, Len: 256},
			{Base: 0x4000, Len: 128},
		},
		Flags: api.MemReadWrite,
		Len:   384,
	}

	buf := h.Serialize()
	got, err := api.DeserializeMemHandle(buf)
	if err != nil {
		t.Fatalf("DeserializeMemHandle: %v", err)
	}
	if got.Len != h.Len || got.Flags != h.Flags || len(got.Segments) != len(h.Segments) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, h)
	}
	for i := range h.Segments {
		if got.Segments[i] != h.Segments[i] {
			t.Fatalf("segment %d mismatch: got %+v, want %+v", i, got.Segments[i], h.Segments[i])
		}
	}
}

func TestMemHandle_DeserializeShortBuffer(t *testing.T) {
	if _, err := api.DeserializeMemHandle([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestMemHandle_DeserializeTruncatedSegments(t *testing.T) {
	h := api.MemHandle{Segments: []api.Segment{{Base: 1, Len: 2}, {Base: 3, Len: 4}}, Len: 6}
	buf := h.Serialize()
	if _, err := api.DeserializeMemHandle(buf[:len(buf)-8]); err == nil {
		t.Fatal("expected error for truncated segment table")
	}
}

func TestMemFlags_ReadableWritable(t *testing.T) {
	if !api.MemReadOnly.Readable() || api.MemReadOnly.Writable() {
		t.Fatal("MemReadOnly should be readable, not writable")
	}
	if api.MemWriteOnly.Readable() || !api.MemWriteOnly.Writable() {
		t.Fatal("MemWriteOnly should be writable, not readable")
	}
	if !api.MemReadWrite.Readable() || !api.MemReadWrite.Writable() {
		t.Fatal("MemReadWrite should be both readable and writable")
	}
}

func TestMemHandle_TranslateSingleSegment(t *testing.T) {
	h := api.MemHandle{Segments: []api.Segment{{Base: 0x1000, Len: 100}}, Len: 100}
	segs, err := h.Translate(10, 20)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(segs) != 1 || segs[0].Base != 0x1000+10 || segs[0].Len != 20 {
		t.Fatalf("unexpected translation: %+v", segs)
	}
}

func TestMemHandle_TranslateSpansMultipleSegments(t *testing.T) {
	h := api.MemHandle{
		Segments: []api.Segment{
			{Base: 0x1000, Len: 50},
			{Base: 0x2000, Len: 50},
		},
		Len: 100,
	}
	segs, err := h.Translate(40, 20)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments spanning the boundary, got %d", len(segs))
	}
	if segs[0].Base != 0x1000+40 || segs[0].Len != 10 {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Base != 0x2000 || segs[1].Len != 10 {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
}

func TestMemHandle_TranslateOutOfBounds(t *testing.T) {
	h := api.MemHandle{Segments: []api.Segment{{Base: 0x1000, Len: 10}}, Len: 10}
	if _, err := h.Translate(5, 10); err == nil {
		t.Fatal("expected error when offset+length exceeds handle length")
	}
}

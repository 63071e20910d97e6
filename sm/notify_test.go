package sm

import (
	"path/filepath"
	"testing"
)

func TestEventfdNotify_SetDrain(t *testing.T) {
	n, err := newEventfdNotify()
	if err != nil {
		t.Skipf("eventfd unavailable: %v", err)
	}
	defer n.Close()

	got, err := n.Drain()
	if err != nil {
		t.Fatalf("Drain on fresh eventfd: %v", err)
	}
	if got {
		t.Fatal("expected no pending wakeup on a fresh eventfd")
	}

	if err := n.Set(); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = n.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !got {
		t.Fatal("expected Drain to report a pending wakeup after Set")
	}

	got, err = n.Drain()
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if got {
		t.Fatal("expected Drain to be idempotent once consumed")
	}
}

func TestEventfdNotify_SetCoalescesMultiple(t *testing.T) {
	n, err := newEventfdNotify()
	if err != nil {
		t.Skipf("eventfd unavailable: %v", err)
	}
	defer n.Close()

	n.Set()
	n.Set()
	n.Set()

	got, err := n.Drain()
	if err != nil || !got {
		t.Fatalf("expected a single coalesced wakeup, got=%v err=%v", got, err)
	}
}

func TestFIFONotify_SetDrain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "na-test-fifo")
	n, err := newFIFONotify(path)
	if err != nil {
		t.Skipf("fifo unavailable: %v", err)
	}
	defer n.Close()

	if err := n.Set(); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := n.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !got {
		t.Fatal("expected Drain to report a pending wakeup")
	}
}

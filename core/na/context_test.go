package na

import (
	"testing"
	"time"

	"github.com/momentics/na/api"
)

func newTestClass(p *mockPlugin) *Class {
	return &Class{plugin: p, contexts: make(map[*Context]struct{})}
}

func TestContext_AddThenEmpty(t *testing.T) {
	c := newTestClass(&mockPlugin{name: "mock"})
	ctx := newContext(c)
	if !ctx.empty() {
		t.Fatal("fresh context should be empty")
	}
	ctx.Add(&api.CompletionRecord{})
	if ctx.empty() {
		t.Fatal("context should be non-empty after Add")
	}
	if ctx.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", ctx.Depth())
	}
}

func TestContext_ProgressShortCircuitsOnNonEmptyQueue(t *testing.T) {
	p := &mockPlugin{name: "mock"}
	c := newTestClass(p)
	ctx := newContext(c)
	ctx.Add(&api.CompletionRecord{})

	if err := ctx.Progress(1000); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.progressCalls != 0 {
		t.Fatalf("expected plugin.Progress not called when queue non-empty, called %d times", p.progressCalls)
	}
}

func TestContext_ProgressCallsPluginWhenEmpty(t *testing.T) {
	p := &mockPlugin{name: "mock"}
	c := newTestClass(p)
	ctx := newContext(c)

	if err := ctx.Progress(10); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.progressCalls != 1 {
		t.Fatalf("expected plugin.Progress called once, got %d", p.progressCalls)
	}
}

func TestContext_ProgressDrainsRetriesEveryCall(t *testing.T) {
	p := &mockPlugin{name: "mock", drainRetries: true}
	c := newTestClass(p)
	ctx := newContext(c)

	for i := 0; i < 3; i++ {
		if err := ctx.Progress(10); err != nil {
			t.Fatalf("Progress: %v", err)
		}
	}
	if p.retryDrains != 3 {
		t.Fatalf("expected DrainRetries called on every Progress (3), got %d", p.retryDrains)
	}
}

func TestContext_TriggerInvokesRecord(t *testing.T) {
	c := newTestClass(&mockPlugin{name: "mock"})
	ctx := newContext(c)

	var invoked bool
	ctx.Add(&api.CompletionRecord{Callback: func(r *api.CompletionRecord) { invoked = true }})

	n, err := ctx.Trigger(1000, 1)
	if err != nil || n != 1 {
		t.Fatalf("Trigger: n=%d err=%v", n, err)
	}
	if !invoked {
		t.Fatal("expected callback to be invoked")
	}
}

func TestContext_CancelForwardsToPlugin(t *testing.T) {
	c := newTestClass(&mockPlugin{name: "mock"})
	ctx := newContext(c)
	if err := ctx.Cancel("fake-op"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

func TestContext_ProgressZeroTimeoutDoesNotBlock(t *testing.T) {
	p := &mockPlugin{name: "mock"}
	c := newTestClass(p)
	ctx := newContext(c)

	start := time.Now()
	if err := ctx.Progress(0); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Progress(0) should not block")
	}
}

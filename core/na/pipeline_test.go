package na

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/na/api"
)

func TestPipeline_EmptyInitially(t *testing.T) {
	p := newPipeline()
	if !p.Empty() {
		t.Fatal("expected a fresh pipeline to be empty")
	}
	if p.Depth() != 0 {
		t.Fatalf("expected depth 0, got %d", p.Depth())
	}
}

func TestPipeline_AddMakesNonEmpty(t *testing.T) {
	p := newPipeline()
	p.Add(&api.CompletionRecord{})
	if p.Empty() {
		t.Fatal("expected pipeline to be non-empty after Add")
	}
	if p.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", p.Depth())
	}
}

func TestPipeline_TriggerInvokesCallbackThenRelease(t *testing.T) {
	p := newPipeline()
	var order []string
	p.Add(&api.CompletionRecord{
		Callback: func(r *api.CompletionRecord) { order = append(order, "cb") },
		Release:  func() { order = append(order, "release") },
	})
	n, err := p.trigger(time.Second, 1)
	if err != nil || n != 1 {
		t.Fatalf("trigger: n=%d err=%v", n, err)
	}
	if len(order) != 2 || order[0] != "cb" || order[1] != "release" {
		t.Fatalf("expected cb then release, got %v", order)
	}
	if !p.Empty() {
		t.Fatal("pipeline should be empty after draining its only record")
	}
}

func TestPipeline_TriggerRespectsMaxCount(t *testing.T) {
	p := newPipeline()
	for i := 0; i < 5; i++ {
		p.Add(&api.CompletionRecord{})
	}
	n, err := p.trigger(time.Second, 2)
	if err != nil || n != 2 {
		t.Fatalf("expected to pop exactly 2, got n=%d err=%v", n, err)
	}
	if p.Depth() != 3 {
		t.Fatalf("expected 3 remaining, got %d", p.Depth())
	}
}

func TestPipeline_TriggerTimesOutWhenEmpty(t *testing.T) {
	p := newPipeline()
	_, err := p.trigger(10*time.Millisecond, 1)
	if !api.Is(err, api.ErrCodeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestPipeline_SpilloverBeyondFastQueue(t *testing.T) {
	p := newPipeline()
	for i := 0; i < fastQueueSize+10; i++ {
		p.Add(&api.CompletionRecord{})
	}
	if p.Depth() != fastQueueSize+10 {
		t.Fatalf("expected depth %d, got %d", fastQueueSize+10, p.Depth())
	}
	n, err := p.trigger(time.Second, fastQueueSize+10)
	if err != nil || n != fastQueueSize+10 {
		t.Fatalf("expected to drain all spillover records, n=%d err=%v", n, err)
	}
	if !p.Empty() {
		t.Fatal("pipeline should be empty after draining fast queue and spillover")
	}
}

func TestPipeline_TriggerWakesOnLateAdd(t *testing.T) {
	p := newPipeline()
	var wg sync.WaitGroup
	var gotCount int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := p.trigger(2*time.Second, 1)
		if err != nil {
			t.Errorf("trigger: %v", err)
			return
		}
		atomic.StoreInt64(&gotCount, int64(n))
	}()

	time.Sleep(50 * time.Millisecond)
	p.Add(&api.CompletionRecord{})
	wg.Wait()

	if atomic.LoadInt64(&gotCount) != 1 {
		t.Fatalf("expected trigger to wake and return 1, got %d", gotCount)
	}
}

package api_test

import (
	"testing"

	"github.com/momentics/na/api"
)

func TestCompletionRecord_InvokeOrder(t *testing.T) {
	var order []string
	rec := &api.CompletionRecord{
		Callback: func(r *api.CompletionRecord) { order = append(order, "callback") },
		Release:  func() { order = append(order, "release") },
	}
	rec.Invoke()
	if len(order) != 2 || order[0] != "callback" || order[1] != "release" {
		t.Fatalf("expected callback before release, got %v", order)
	}
}

func TestCompletionRecord_InvokeNilSafe(t *testing.T) {
	rec := &api.CompletionRecord{}
	rec.Invoke() // must not panic with nil Callback/Release
}

func TestCompletionInfo_VariantsImplementMarker(t *testing.T) {
	var infos = []api.CompletionInfo{
		api.LookupInfo{},
		api.RecvUnexpectedInfo{},
		api.RecvExpectedInfo{},
		api.SendInfo{},
		api.PutInfo{},
		api.GetInfo{},
	}
	if len(infos) != 6 {
		t.Fatal("expected all six completion info variants to satisfy CompletionInfo")
	}
}

type fakeSink struct {
	received []*api.CompletionRecord
}

func (s *fakeSink) Add(rec *api.CompletionRecord) { s.received = append(s.received, rec) }

func TestCompletionSink_Interface(t *testing.T) {
	var sink api.CompletionSink = &fakeSink{}
	sink.Add(&api.CompletionRecord{})
	if len(sink.(*fakeSink).received) != 1 {
		t.Fatal("expected one record recorded")
	}
}

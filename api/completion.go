// File: api/completion.go
// Package api defines the completion record carried through the NA
// completion pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// CompletionInfo is the typed payload a completion carries. Each plugin
// operation produces exactly one of these; core/na never inspects it beyond
// passing it to the user callback.
type CompletionInfo interface {
	isCompletionInfo()
}

// LookupInfo is produced by an address-lookup completion.
type LookupInfo struct {
	Addr Addr
}

// RecvUnexpectedInfo is produced by a completed unexpected receive.
type RecvUnexpectedInfo struct {
	Source        Addr
	Tag           uint32
	ActualSize    int
}

// RecvExpectedInfo is produced by a completed expected receive.
type RecvExpectedInfo struct {
	ActualSize int
}

// SendInfo is produced by a completed send (unexpected or expected).
type SendInfo struct{}

// PutInfo is produced by a completed one-sided put.
type PutInfo struct{}

// GetInfo is produced by a completed one-sided get.
type GetInfo struct{}

func (LookupInfo) isCompletionInfo()         {}
func (RecvUnexpectedInfo) isCompletionInfo() {}
func (RecvExpectedInfo) isCompletionInfo()   {}
func (SendInfo) isCompletionInfo()           {}
func (PutInfo) isCompletionInfo()            {}
func (GetInfo) isCompletionInfo()            {}

// CompletionCallback is invoked by Context.Trigger once a record is popped.
// It runs before Release: the mandatory ordering means the plugin
// must not reclaim resources until the user has observed them.
type CompletionCallback func(rec *CompletionRecord)

// CompletionRecord carries a user callback, a typed info payload, a result,
// and a plugin-release hook that runs strictly after Callback.
type CompletionRecord struct {
	Callback CompletionCallback
	Info     CompletionInfo
	Result   error
	Release  func()
	// Arg is the opaque user context pointer the operation was posted with;
	// plugins stash it here so Callback can thread it back to the caller.
	Arg any
}

// Invoke runs Callback then Release, in that mandatory order. Safe to call
// with a nil Callback or Release.
func (r *CompletionRecord) Invoke() {
	if r.Callback != nil {
		r.Callback(r)
	}
	if r.Release != nil {
		r.Release()
	}
}

// CompletionSink is the posting side of a context's completion pipeline
// Every plugin operation that can complete
// asynchronously is submitted against a sink so the plugin knows which
// context's queue to post the eventual CompletionRecord to, even though the
// plugin's own progress loop (poll set, rings) is shared by the whole class.
type CompletionSink interface {
	Add(rec *CompletionRecord)
}

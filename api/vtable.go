// File: api/vtable.go
// Package api defines the plugin vtable contract that class dispatch (C8)
// routes every operation through.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// OpID is an opaque handle to an in-flight operation, reusable once
// completed. Plugins decide its concrete type;
// core/na and callers only ever compare or pass it back to Cancel.
type OpID any

// Plugin is the vtable every NA transport implements. Go interfaces
// cannot carry nil methods, so dispatch (C8) performs no per-method nil
// check: a plugin that does not support an operation still implements the
// method and returns ErrOpNotSupported from it, rather than leaving a
// missing vtable slot (the tagged variant becomes a single concrete type
// implementing this interface).
type Plugin interface {
	// Name identifies the plugin for class-qualified addressing
	// ("<class>+<protocol>").
	Name() string

	// CheckProtocol reports whether this plugin serves protocol when no
	// class was explicitly requested in the address URI.
	CheckProtocol(protocol string) bool

	// Initialize brings the plugin up, optionally in listening mode.
	Initialize(opts *InitOptions, listen bool) error

	// Finalize tears the plugin down. Must be idempotent-safe to call once.
	Finalize() error

	// AddrLookup resolves name asynchronously; completion carries a
	// LookupInfo and is posted to sink.
	AddrLookup(sink CompletionSink, name string, cb CompletionCallback, arg any) (OpID, error)

	// AddrSelf returns the plugin's own listening address, if any.
	AddrSelf() (Addr, error)

	// AddrFromString parses a plugin-specific address tail (already past
	// the class/protocol prefix split performed by dispatch).
	AddrFromString(s string) (Addr, error)

	// MsgMaxSize returns the largest unexpected/expected payload the
	// plugin accepts in one send.
	MsgMaxSize() int

	// MsgSendUnexpected posts an unexpected send; completion carries SendInfo.
	MsgSendUnexpected(sink CompletionSink, dest Addr, buf []byte, tag uint32, cb CompletionCallback, arg any) (OpID, error)

	// MsgRecvUnexpected posts a receive that matches any not-yet-matched
	// unexpected send; completion carries RecvUnexpectedInfo.
	MsgRecvUnexpected(sink CompletionSink, buf []byte, cb CompletionCallback, arg any) (OpID, error)

	// MsgSendExpected posts an expected send; completion carries SendInfo.
	MsgSendExpected(sink CompletionSink, dest Addr, buf []byte, tag uint32, cb CompletionCallback, arg any) (OpID, error)

	// MsgRecvExpected pre-posts a receive matching (src, tag); completion
	// carries RecvExpectedInfo.
	MsgRecvExpected(sink CompletionSink, src Addr, buf []byte, tag uint32, cb CompletionCallback, arg any) (OpID, error)

	// MemRegister registers a local memory region for RMA and returns its
	// handle.
	MemRegister(segs []Segment, flags MemFlags) (MemHandle, error)

	// MemDeregister releases a previously registered region.
	MemDeregister(h MemHandle) error

	// Put writes localHandle[localOffset:localOffset+length] into
	// remoteHandle at remoteOffset on dest; completion carries PutInfo.
	Put(sink CompletionSink, dest Addr, localHandle MemHandle, localOffset uint64, remoteHandle MemHandle, remoteOffset uint64, length uint64, cb CompletionCallback, arg any) (OpID, error)

	// Get reads remoteHandle[remoteOffset:remoteOffset+length] from src
	// into localHandle at localOffset; completion carries GetInfo.
	Get(sink CompletionSink, src Addr, localHandle MemHandle, localOffset uint64, remoteHandle MemHandle, remoteOffset uint64, length uint64, cb CompletionCallback, arg any) (OpID, error)

	// Progress drives the plugin for up to timeoutMs milliseconds (0 means
	// poll-once). Called by core/na's multi-progress lock with at most one
	// caller in flight per context.
	Progress(timeoutMs int) error

	// Cancel marks op CANCELED; a no-op on already-completed
	// operations.
	Cancel(op OpID) error

	// PollFD exposes the plugin's poll-set descriptor, if any, so an outer
	// runtime can multiplex it externally.
	PollFD() (fd uintptr, ok bool)
}

package na

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/na/api"
)

// mockPlugin is a minimal api.Plugin stand-in used to exercise class/context
// dispatch without any real transport underneath.
type mockPlugin struct {
	name     string
	protocol string

	mu           sync.Mutex
	progressCalls int32
	retryDrains   int32
	finalizeCalls int32

	progressErr error
	progressDelay func()

	drainRetries bool
}

func (m *mockPlugin) Name() string                          { return m.name }
func (m *mockPlugin) CheckProtocol(protocol string) bool     { return protocol == m.protocol }
func (m *mockPlugin) Initialize(opts *api.InitOptions, listen bool) error { return nil }
func (m *mockPlugin) Finalize() error {
	atomic.AddInt32(&m.finalizeCalls, 1)
	return nil
}
func (m *mockPlugin) AddrLookup(sink api.CompletionSink, name string, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) AddrSelf() (api.Addr, error)                  { return nil, api.ErrOpNotSupported }
func (m *mockPlugin) AddrFromString(s string) (api.Addr, error)    { return nil, api.ErrOpNotSupported }
func (m *mockPlugin) MsgMaxSize() int                              { return 4096 }
func (m *mockPlugin) MsgSendUnexpected(sink api.CompletionSink, dest api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) MsgRecvUnexpected(sink api.CompletionSink, buf []byte, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) MsgSendExpected(sink api.CompletionSink, dest api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) MsgRecvExpected(sink api.CompletionSink, src api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) MemRegister(segs []api.Segment, flags api.MemFlags) (api.MemHandle, error) {
	return api.MemHandle{}, api.ErrOpNotSupported
}
func (m *mockPlugin) MemDeregister(h api.MemHandle) error { return nil }
func (m *mockPlugin) Put(sink api.CompletionSink, dest api.Addr, localHandle api.MemHandle, localOffset uint64, remoteHandle api.MemHandle, remoteOffset uint64, length uint64, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) Get(sink api.CompletionSink, src api.Addr, localHandle api.MemHandle, localOffset uint64, remoteHandle api.MemHandle, remoteOffset uint64, length uint64, cb api.CompletionCallback, arg any) (api.OpID, error) {
	return nil, api.ErrOpNotSupported
}
func (m *mockPlugin) Progress(timeoutMs int) error {
	atomic.AddInt32(&m.progressCalls, 1)
	if m.progressDelay != nil {
		m.progressDelay()
	}
	return m.progressErr
}
func (m *mockPlugin) Cancel(op api.OpID) error      { return nil }
func (m *mockPlugin) PollFD() (uintptr, bool)       { return 0, false }

// DrainRetries makes mockPlugin satisfy the optional retryDrainer interface
// when drainRetries is set, exercising core/na's type assertion path.
func (m *mockPlugin) DrainRetries() {
	if !m.drainRetries {
		return
	}
	atomic.AddInt32(&m.retryDrains, 1)
}

var _ api.Plugin = (*mockPlugin)(nil)

// File: sm/vtable_ops.go
// api.Plugin operation entry points delegating to handshake.go/transfer.go.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"github.com/momentics/na/api"
	"github.com/momentics/na/core/concurrency"
)

// AddrLookup resolves name ("<pid>/<id>") by performing the connect-side
// handshake; completion fires once the socket
// state machine reaches DONE.
func (p *Plugin) AddrLookup(sink api.CompletionSink, name string, cb api.CompletionCallback, arg any) (api.OpID, error) {
	if sink == nil {
		return nil, api.ErrNilArgument
	}
	o, err := p.startLookup(name, sink, cb, arg)
	if err != nil {
		return nil, err
	}
	return o.handle(), nil
}

func (p *Plugin) MsgSendUnexpected(sink api.CompletionSink, dest api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	d, ok := dest.(*Addr)
	if !ok {
		return nil, api.ErrNilArgument
	}
	o, err := p.sendUnexpected(d, buf, tag, sink, cb, arg)
	return opIDOrNil(o, err)
}

func (p *Plugin) MsgRecvUnexpected(sink api.CompletionSink, buf []byte, cb api.CompletionCallback, arg any) (api.OpID, error) {
	o, err := p.recvUnexpected(buf, sink, cb, arg)
	return opIDOrNil(o, err)
}

func (p *Plugin) MsgSendExpected(sink api.CompletionSink, dest api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	d, ok := dest.(*Addr)
	if !ok {
		return nil, api.ErrNilArgument
	}
	o, err := p.sendExpected(d, buf, tag, sink, cb, arg)
	return opIDOrNil(o, err)
}

func (p *Plugin) MsgRecvExpected(sink api.CompletionSink, src api.Addr, buf []byte, tag uint32, cb api.CompletionCallback, arg any) (api.OpID, error) {
	s, ok := src.(*Addr)
	if !ok {
		return nil, api.ErrNilArgument
	}
	o, err := p.recvExpected(s, buf, tag, sink, cb, arg)
	return opIDOrNil(o, err)
}

func (p *Plugin) Put(sink api.CompletionSink, dest api.Addr, localHandle api.MemHandle, localOffset uint64, remoteHandle api.MemHandle, remoteOffset uint64, length uint64, cb api.CompletionCallback, arg any) (api.OpID, error) {
	d, ok := dest.(*Addr)
	if !ok {
		return nil, api.ErrNilArgument
	}
	o, err := p.put(d, localHandle, localOffset, remoteHandle, remoteOffset, length, sink, cb, arg)
	return opIDOrNil(o, err)
}

func (p *Plugin) Get(sink api.CompletionSink, src api.Addr, localHandle api.MemHandle, localOffset uint64, remoteHandle api.MemHandle, remoteOffset uint64, length uint64, cb api.CompletionCallback, arg any) (api.OpID, error) {
	s, ok := src.(*Addr)
	if !ok {
		return nil, api.ErrNilArgument
	}
	o, err := p.get(s, localHandle, localOffset, remoteHandle, remoteOffset, length, sink, cb, arg)
	return opIDOrNil(o, err)
}

// opIDOrNil wraps o as the generation-pinned handle callers receive as
// api.OpID, passing err through untouched so the nil-on-error contract each
// vtable method documents still holds.
func opIDOrNil(o *op, err error) (api.OpID, error) {
	if err != nil {
		return nil, err
	}
	return o.handle(), nil
}

// Progress drives the poll set for up to timeoutMs milliseconds, dispatching
// each ready descriptor per its tag. NO_BLOCK forces a
// poll-once regardless of the requested timeout.
func (p *Plugin) Progress(timeoutMs int) error {
	if p.opts != nil && p.opts.ProgressMode.Has(api.NoBlock) {
		timeoutMs = 0
	}
	events, err := p.poller.wait(timeoutMs)
	if err != nil {
		return faultErr(err.Error())
	}
	for _, ev := range events {
		if ev.error {
			p.handleDisconnect(ev.addr)
			continue
		}
		switch ev.tag {
		case tagAccept:
			p.acceptProgression()
		case tagSock:
			p.sockProgression(ev.addr)
		case tagNotify:
			if ev.addr.localNotify != nil {
				ev.addr.localNotify.Drain()
			}
			// selfAddr's notify has no recv ring behind it; it exists only
			// to wake this epoll wait promptly after a synchronous local
			// completion, so there is nothing to drain from it directly.
			if ev.addr != p.selfAddr {
				p.drainNotify(ev.addr)
			}
			p.DrainRetries()
		}
	}
	return nil
}

// handleDisconnect implements the Open Question #1 decision recorded in
// DESIGN.md: outstanding ops against the dying peer complete with
// PROTOCOL_ERROR before the address is freed.
func (p *Plugin) handleDisconnect(addr *Addr) {
	matches := func(x *op) bool { return x.peer != nil && x.peer.Equal(addr) }
	for _, q := range []*concurrency.SpinQueue[*op]{p.expectedOps, p.retryOps, p.lookupOps} {
		for {
			o, ok := q.RemoveMatch(matches)
			if !ok {
				break
			}
			o.complete(p.opPool, nil, protocolErr("sm: peer disconnected"))
		}
	}
	addr.Release()
}

// Cancel marks op CANCELED; a no-op if already completed, otherwise
// removes it from whichever queue it sits in and completes it synchronously
// against the plugin queues. A handle whose generation no longer matches
// its op -- because the op-id it named completed, was released back to the
// pool, and got handed out again for an unrelated operation -- fails with
// BUSY instead of silently acting on someone else's op.
func (p *Plugin) Cancel(opID api.OpID) error {
	h, ok := opID.(opHandle)
	if !ok {
		return api.ErrNilArgument
	}
	o, err := h.resolve()
	if err != nil {
		return err
	}
	if o.Status()&opCompleted != 0 {
		return nil
	}
	o.setStatus(opCanceled)

	queues := []*struct {
		remove func(func(*op) bool) (*op, bool)
	}{
		{p.unexpectedOps.RemoveMatch},
		{p.expectedOps.RemoveMatch},
		{p.retryOps.RemoveMatch},
		{p.lookupOps.RemoveMatch},
	}
	for _, q := range queues {
		if found, ok := q.remove(func(x *op) bool { return x == o }); ok {
			found.complete(p.opPool, nil, api.NewError(api.ErrCodeCanceled, "operation canceled"))
			return nil
		}
	}
	return nil
}

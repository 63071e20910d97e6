// File: sm/plugin.go
// api.Plugin implementation wiring the ring/copy-pool/notify/handshake/
// transfer/progress pieces into the NA vtable.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/na/api"
	"github.com/momentics/na/core/concurrency"
	"github.com/momentics/na/core/na"
)

// acceptRateLimit bounds accept progression to one connection per interval
// (Open Question decision #3 in DESIGN.md).
const acceptRateLimit = 100 * time.Millisecond

// Plugin is the SM transport singleton registered with core/na. It
// supports exactly one active listen/connect session set per process
// lifetime between Initialize and Finalize (Mercury NA allows several SM class instances per
// process; this implementation's vtable is a package-level singleton, so
// re-Initialize before Finalize is rejected rather than silently
// reattaching).
type Plugin struct {
	mu          sync.Mutex
	initialized bool
	opts        *api.InitOptions

	pid    int
	nextID atomic.Int32

	tmpDir string
	user   string

	listenID  int
	selfAddr  *Addr
	listenFD  int

	poller *epoller

	unexpectedOps  *concurrency.SpinQueue[*op]
	unexpectedMsgs *concurrency.SpinQueue[*stagedMsg]
	expectedOps    *concurrency.SpinQueue[*op]
	retryOps       *concurrency.SpinQueue[*op]
	acceptedAddrs  *concurrency.SpinQueue[*Addr]
	pollAddrs      *concurrency.SpinQueue[*Addr]
	lookupOps      *concurrency.SpinQueue[*op]

	opPool *opPool

	acceptMu   sync.Mutex
	lastAccept time.Time
}

var _ api.Plugin = (*Plugin)(nil)

func init() {
	na.Register(New())
}

// New constructs an un-initialized SM plugin instance.
func New() *Plugin {
	return &Plugin{
		pid:            os.Getpid(),
		listenID:       -1,
		tmpDir:         defaultTmpDir(),
		user:           currentUser(),
		unexpectedOps:  concurrency.NewSpinQueue[*op](),
		unexpectedMsgs: concurrency.NewSpinQueue[*stagedMsg](),
		expectedOps:    concurrency.NewSpinQueue[*op](),
		retryOps:       concurrency.NewSpinQueue[*op](),
		acceptedAddrs:  concurrency.NewSpinQueue[*Addr](),
		pollAddrs:      concurrency.NewSpinQueue[*Addr](),
		lookupOps:      concurrency.NewSpinQueue[*op](),
		opPool:         newOpPool(),
	}
}

// Name identifies this plugin for class-qualified addressing.
func (p *Plugin) Name() string { return "sm" }

// CheckProtocol reports whether protocol names this plugin when no class
// was explicitly requested.
func (p *Plugin) CheckProtocol(protocol string) bool {
	return protocol == "sm"
}

// Initialize brings the plugin up, optionally creating a listening
// endpoint.
func (p *Plugin) Initialize(opts *api.InitOptions, listen bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return api.NewError(api.ErrCodeInvalidArg, "sm plugin already initialized")
	}
	p.opts = opts

	if dir, ok := opts.Get("sm_tmp_dir"); ok {
		if s, ok := dir.(string); ok && s != "" {
			p.tmpDir = s
		}
	}

	poller, err := newEpoller()
	if err != nil {
		return faultErr(fmt.Sprintf("sm: epoll create: %v", err))
	}
	p.poller = poller

	if listen {
		if err := p.listen(); err != nil {
			poller.close()
			return err
		}
	} else {
		if _, err := p.setupSelf(); err != nil {
			poller.close()
			return err
		}
	}

	p.initialized = true
	return nil
}

// Finalize releases the plugin's reference on every accepted address,
// tears down the self address (closing any listening socket), and closes
// the poll set; addresses returned by AddrLookup are not released here.
// Idempotent-safe to call once (api.Plugin contract).
func (p *Plugin) Finalize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}
	p.initialized = false

	for _, a := range p.acceptedAddrs.DrainAll() {
		a.Release()
	}
	if p.selfAddr != nil {
		p.selfAddr.teardown()
		p.selfAddr = nil
	}
	if p.poller != nil {
		p.poller.close()
	}
	return nil
}

// AddrSelf returns the plugin's own listening address, if any.
func (p *Plugin) AddrSelf() (api.Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selfAddr == nil {
		return nil, api.NewError(api.ErrCodeInvalidArg, "sm plugin is not listening")
	}
	return p.selfAddr.Dup(), nil
}

// AddrFromString parses "<pid>/<id>" (the tail already past "sm://").
func (p *Plugin) AddrFromString(s string) (api.Addr, error) {
	s = strings.TrimPrefix(s, "sm://")
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return nil, api.NewError(api.ErrCodeInvalidArg, "sm: malformed address").WithContext("addr", s)
	}
	pid, err1 := strconv.Atoi(parts[0])
	id, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, api.NewError(api.ErrCodeInvalidArg, "sm: non-numeric pid/id").WithContext("addr", s)
	}
	a := &Addr{pid: pid, id: id, owner: p}
	a.refCount.Store(1)
	return a, nil
}

// MsgMaxSize returns the 4 KiB copy-pool slot size.
func (p *Plugin) MsgMaxSize() int { return maxPayload }

// MemRegister wraps segments into a handle, summing their lengths; SM performs
// no actual pinning since process_vm_readv/writev work against ordinary
// process memory.
func (p *Plugin) MemRegister(segs []api.Segment, flags api.MemFlags) (api.MemHandle, error) {
	var total uint64
	for _, s := range segs {
		total += s.Len
	}
	return api.MemHandle{Segments: segs, Flags: flags, Len: total}, nil
}

// MemDeregister is a no-op: SM holds no registration-side kernel state.
func (p *Plugin) MemDeregister(h api.MemHandle) error { return nil }

// PollFD exposes the shared epoll descriptor.
func (p *Plugin) PollFD() (uintptr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poller == nil {
		return 0, false
	}
	return uintptr(p.poller.epfd), true
}

// forgetAddr removes addr from every per-process queue it might still sit
// in; called from Addr.teardown so a freed address never lingers as a
// dangling poll/accept entry.
func (p *Plugin) forgetAddr(a *Addr) {
	p.acceptedAddrs.RemoveMatch(func(x *Addr) bool { return x == a })
	p.pollAddrs.RemoveMatch(func(x *Addr) bool { return x == a })
	if a.sockFD != 0 {
		p.poller.deregister(a.sockFD)
	}
	if a.localNotify != nil {
		p.poller.deregister(int(a.localNotify.Fd()))
	}
}

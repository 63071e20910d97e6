// File: sm/addr.go
// SM address: identity and per-connection resources for a peer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/momentics/na/api"
	"golang.org/x/sys/unix"
)

// sockState is the two-state socket progression a non-self peer passes
// through during handshake.
type sockState int

const (
	sockAddrInfo sockState = iota // accept side: waiting for the connector's (pid,id)
	sockConnID                    // initiator side: waiting for conn_id + notify fds
	sockDone
)

// Addr identifies a peer by (pid, id, connID) and holds every OS resource
// a session needs. Lifetime is manually reference counted; Addr
// is freed only once refCount drops to zero.
type Addr struct {
	pid    int
	id     int
	connID int

	self     bool
	accepted bool

	sockFD int
	state  sockState

	localNotify  notifier
	remoteNotify notifier

	pool    *CopyPool
	sendRing *Ring // our send ring == peer's recv ring
	recvRing *Ring // our recv ring == peer's send ring

	poolSeg *shmSegment
	sendSeg *shmSegment
	recvSeg *shmSegment

	refCount atomic.Int32

	// owner lets teardown route back into the plugin's per-process queues
	// (poll set deregistration, pending op completion on disconnect).
	owner *Plugin
}

var _ api.Addr = (*Addr)(nil)

// String renders "sm://<pid>/<id>", ignoring connID since that is
// a session detail, not part of the addressable name.
func (a *Addr) String() string {
	return fmt.Sprintf("sm://%d/%d", a.pid, a.id)
}

// Dup takes a new reference and returns the same address.
func (a *Addr) Dup() api.Addr {
	a.refCount.Add(1)
	return a
}

// Release drops a reference, tearing the address down at zero.
func (a *Addr) Release() {
	if a.refCount.Add(-1) == 0 {
		a.teardown()
	}
}

// Equal compares by (pid, id); two Addrs naming the same peer always agree
// regardless of which session (connID) produced them.
func (a *Addr) Equal(other api.Addr) bool {
	o, ok := other.(*Addr)
	if !ok {
		return false
	}
	return a.pid == o.pid && a.id == o.id
}

// Self reports whether this Addr names the local class instance.
func (a *Addr) Self() bool { return a.self }

// teardown deregisters fds, closes sockets and notify fds, and unmaps the
// rings and the copy pool; a shared-memory name is unlinked only by the
// side that created it. For the listening self address it also removes
// the socket path.
func (a *Addr) teardown() {
	if a.owner != nil {
		a.owner.forgetAddr(a)
	}
	if a.localNotify != nil {
		a.localNotify.Close()
	}
	if a.remoteNotify != nil {
		a.remoteNotify.Close()
	}
	if a.sockFD != 0 {
		_ = unix.Close(a.sockFD)
		if a.self && a.owner != nil {
			_ = os.Remove(socketPath(a.owner.tmpDir, a.owner.user, a.pid, a.id))
		}
	}
	if a.sendSeg != nil {
		a.sendSeg.close()
	}
	if a.recvSeg != nil {
		a.recvSeg.close()
	}
	if a.poolSeg != nil {
		a.poolSeg.close()
	}
}

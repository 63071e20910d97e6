// File: sm/handshake.go
// SM addressing & handshake: listen side, connect side, accept
// progression, and the two-state socket state machine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/momentics/na/api"
	"golang.org/x/sys/unix"
)

// setupSelf creates this instance's own copy pool and allocates its
// per-process id. Every Initialize call needs this, listening or not: a
// connect-only class still advertises its own (pid, id) during the
// connect-side handshake so a peer can later send unsolicited replies into
// its pool.
func (p *Plugin) setupSelf() (*Addr, error) {
	id := int(p.nextID.Add(1)) - 1

	poolName := copyPoolName(p.user, p.pid, id)
	poolSeg, err := createShmSegment(poolName, PoolPageBytes)
	if err != nil {
		return nil, faultErr(err.Error())
	}
	pool, err := initCopyPool(poolSeg.mem)
	if err != nil {
		poolSeg.close()
		return nil, faultErr(err.Error())
	}

	self := &Addr{
		pid: p.pid, id: id, self: true,
		pool: pool, poolSeg: poolSeg,
		owner: p,
	}
	self.refCount.Store(1)

	localNotify, err := newEventfdNotify()
	if err != nil {
		poolSeg.close()
		return nil, faultErr(err.Error())
	}
	self.localNotify = localNotify
	if err := p.poller.register(int(localNotify.Fd()), tagNotify, self); err != nil {
		localNotify.Close()
		poolSeg.close()
		return nil, faultErr(err.Error())
	}

	p.listenID = id
	p.selfAddr = self
	return self, nil
}

// listen brings up the listening side: on top of setupSelf, creates
// the socket directory hierarchy, binds a seqpacket socket, listens, and
// registers it ACCEPT.
func (p *Plugin) listen() error {
	self, err := p.setupSelf()
	if err != nil {
		return err
	}

	sockPath := socketPath(p.tmpDir, p.user, p.pid, self.id)
	if err := os.MkdirAll(filepath.Dir(sockPath), 0o700); err != nil {
		return faultErr(err.Error())
	}
	os.Remove(sockPath)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return faultErr(err.Error())
	}
	addr := &unix.SockaddrUnix{Name: sockPath}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return faultErr(err.Error())
	}
	if err := unix.Listen(fd, 64); err != nil {
		unix.Close(fd)
		return faultErr(err.Error())
	}

	self.sockFD = fd
	self.state = sockDone
	if err := p.poller.register(fd, tagAccept, self); err != nil {
		unix.Close(fd)
		return faultErr(err.Error())
	}

	p.listenFD = fd
	return nil
}

// startLookup begins the connect-side handshake for name ("<pid>/<id>")
// and returns the pending lookup op-id; completion is driven later from
// Progress via sockProgression reaching sockDone.
func (p *Plugin) startLookup(name string, sink api.CompletionSink, cb api.CompletionCallback, arg any) (*op, error) {
	target, err := p.AddrFromString(name)
	if err != nil {
		return nil, err
	}
	remote := target.(*Addr)

	poolSeg, err := openShmSegment(copyPoolName(p.user, remote.pid, remote.id), PoolPageBytes)
	if err != nil {
		return nil, faultErr(err.Error())
	}
	pool, err := mapCopyPool(poolSeg.mem)
	if err != nil {
		poolSeg.close()
		return nil, faultErr(err.Error())
	}
	remote.pool = pool
	remote.poolSeg = poolSeg

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		poolSeg.close()
		return nil, faultErr(err.Error())
	}
	sockPath := socketPath(p.tmpDir, p.user, remote.pid, remote.id)
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: sockPath})
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		poolSeg.close()
		return nil, faultErr(err.Error())
	}
	remote.sockFD = fd
	remote.state = sockConnID
	remote.refCount.Store(2)

	if err := p.poller.register(fd, tagSock, remote); err != nil {
		unix.Close(fd)
		poolSeg.close()
		return nil, faultErr(err.Error())
	}

	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(p.pid))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.listenID))
	if _, err := unix.Write(fd, buf[:]); err != nil && err != unix.EAGAIN {
		return nil, faultErr(err.Error())
	}

	o := p.opPool.acquire(opKindLookup)
	o.sink = sink
	o.cb = cb
	o.arg = arg
	o.peer = remote
	o.lookName = name
	o.setStatus(opQueued)
	p.lookupOps.PushBack(o)
	return o, nil
}

// acceptProgression fires when the listener socket is readable
// "Accept progression").
func (p *Plugin) acceptProgression() {
	p.acceptMu.Lock()
	since := time.Since(p.lastAccept)
	if since < acceptRateLimit {
		p.acceptMu.Unlock()
		return
	}
	p.lastAccept = time.Now()
	p.acceptMu.Unlock()

	fd, _, err := unix.Accept4(p.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return // EAGAIN or transient; no progress this round
	}

	connID := int(p.nextID.Add(1))
	peer := &Addr{
		pid: -1, id: -1, connID: connID,
		accepted: true, state: sockAddrInfo,
		sockFD: fd,
		owner:  p,
	}
	peer.refCount.Store(1)
	p.poller.register(fd, tagSock, peer)

	sendName := ringName(p.user, p.pid, p.listenID, connID, "s")
	recvName := ringName(p.user, p.pid, p.listenID, connID, "r")
	sendSeg, err := createShmSegment(sendName, RingPageBytes)
	if err != nil {
		peer.Release()
		return
	}
	recvSeg, err := createShmSegment(recvName, RingPageBytes)
	if err != nil {
		sendSeg.close()
		peer.Release()
		return
	}
	sendRing, _ := initRing(sendSeg.mem)
	recvRing, _ := initRing(recvSeg.mem)
	peer.sendRing = sendRing
	peer.recvRing = recvRing
	peer.sendSeg = sendSeg
	peer.recvSeg = recvSeg

	localNotify, err := newEventfdNotify()
	if err != nil {
		sendSeg.close()
		recvSeg.close()
		peer.Release()
		return
	}
	remoteNotify, err := newEventfdNotify()
	if err != nil {
		localNotify.Close()
		sendSeg.close()
		recvSeg.close()
		peer.Release()
		return
	}
	peer.localNotify = localNotify
	peer.remoteNotify = remoteNotify
	p.poller.register(int(localNotify.Fd()), tagNotify, peer)

	// Both fds stay open on our side: localNotify is what we poll for
	// incoming signals from the peer, remoteNotify is what tryPost
	// later calls Set on to signal the peer, symmetric with how
	// sockProgression's sockConnID case keeps both of its own copies open.
	// The peer gets its own dup of each through the SCM_RIGHTS transfer.
	sendAncillaryHandshake(fd, connID, int(localNotify.Fd()), int(remoteNotify.Fd()))

	p.acceptedAddrs.PushBack(peer)
}

// sockProgression advances the two-state socket machine for addr.
func (p *Plugin) sockProgression(addr *Addr) {
	switch addr.state {
	case sockAddrInfo:
		var buf [8]byte
		n, err := unix.Read(addr.sockFD, buf[:])
		if err != nil || n < 8 {
			return
		}
		addr.pid = int(binary.LittleEndian.Uint32(buf[0:4]))
		addr.id = int(binary.LittleEndian.Uint32(buf[4:8]))

		poolSeg, err := openShmSegment(copyPoolName(p.user, addr.pid, addr.id), PoolPageBytes)
		if err == nil {
			if pool, err := mapCopyPool(poolSeg.mem); err == nil {
				addr.pool = pool
				addr.poolSeg = poolSeg
			} else {
				poolSeg.close()
			}
		}

		addr.state = sockDone
		p.pollAddrs.PushBack(addr)

	case sockConnID:
		connID, localFD, remoteFD, ok := recvAncillaryHandshake(addr.sockFD)
		if !ok {
			return
		}
		addr.connID = connID

		sendSeg, err1 := openShmSegment(ringName(p.user, addr.pid, addr.id, connID, "r"), RingPageBytes)
		recvSeg, err2 := openShmSegment(ringName(p.user, addr.pid, addr.id, connID, "s"), RingPageBytes)
		if err1 == nil {
			addr.sendRing, _ = mapRing(sendSeg.mem)
			addr.sendSeg = sendSeg
		}
		if err2 == nil {
			addr.recvRing, _ = mapRing(recvSeg.mem)
			addr.recvSeg = recvSeg
		}

		addr.localNotify = &eventfdNotify{fd: localFD}
		addr.remoteNotify = &eventfdNotify{fd: remoteFD}
		p.poller.register(localFD, tagNotify, addr)

		addr.state = sockDone
		p.pollAddrs.PushBack(addr)

		if found, ok := p.lookupOps.RemoveMatch(func(o *op) bool { return o.peer == addr }); ok {
			found.complete(p.opPool, api.LookupInfo{Addr: addr}, nil)
		}
	}
}

// File: sm/progress.go
// Progress loop / poll set. Grounded on an epoll reactor shape:
// one epoll fd, per-fd tagged user data, Register/Wait/Close.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"golang.org/x/sys/unix"
)

// pollTag classifies why a descriptor is registered with the poll set
// backing this plugin's PollFD.
type pollTag int

const (
	tagAccept pollTag = iota
	tagSock
	tagNotify
)

type pollEntry struct {
	tag  pollTag
	addr *Addr
}

// epoller owns the single poll set a plugin exposes via PollFD, so an
// outer runtime can wait on it directly.
type epoller struct {
	epfd    int
	entries map[int]pollEntry
}

func newEpoller() (*epoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epoller{epfd: fd, entries: make(map[int]pollEntry)}, nil
}

// register adds fd to the poll set tagged with tag/addr. The epoll
// user-data field carries fd itself so Wait can recover the pollEntry.
func (e *epoller) register(fd int, tag pollTag, addr *Addr) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN}
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	e.entries[fd] = pollEntry{tag: tag, addr: addr}
	return nil
}

func (e *epoller) deregister(fd int) {
	unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(e.entries, fd)
}

// firedEvent is one ready descriptor paired with its registration metadata
// and whether the kernel reported an error/hangup (peer disconnect).
type firedEvent struct {
	fd    int
	tag   pollTag
	addr  *Addr
	error bool
}

// wait blocks up to timeoutMs (0 = poll-once, -1 = forever) and returns the
// ready descriptors.
func (e *epoller) wait(timeoutMs int) ([]firedEvent, error) {
	events := make([]unix.EpollEvent, 32)
	n, err := unix.EpollWait(e.epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]firedEvent, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		entry, ok := e.entries[fd]
		if !ok {
			continue
		}
		errored := events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		out = append(out, firedEvent{fd: fd, tag: entry.tag, addr: entry.addr, error: errored})
	}
	return out, nil
}

func (e *epoller) close() error {
	return unix.Close(e.epfd)
}

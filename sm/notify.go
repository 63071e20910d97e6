// File: sm/notify.go
// Per-peer notify channel: event-fd preferred, named-FIFO
// fallback.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// notifier is a per-peer wakeup primitive: Set increments a counter by one,
// Drain reports whether the counter was non-zero and resets it.
type notifier interface {
	Fd() uintptr
	Set() error
	Drain() (bool, error)
	Close() error
}

// newEventfdNotify creates an event-fd-backed notifier, the preferred
// primitive.
func newEventfdNotify() (notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdNotify{fd: fd}, nil
}

type eventfdNotify struct {
	fd int
}

func (n *eventfdNotify) Fd() uintptr { return uintptr(n.fd) }

func (n *eventfdNotify) Set() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(n.fd, buf[:])
	return err
}

func (n *eventfdNotify) Drain() (bool, error) {
	var buf [8]byte
	_, err := unix.Read(n.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return false, nil
		}
		return false, err
	}
	return binary.LittleEndian.Uint64(buf[:]) > 0, nil
}

func (n *eventfdNotify) Close() error { return unix.Close(n.fd) }

// newFIFONotify creates the named-FIFO fallback at path, used when eventfd
// descriptors cannot be passed as ancillary data (this happens
// on non-Linux targets the SM plugin does not run on, kept here for
// forward compatibility with a future non-eventfd backend).
func newFIFONotify(path string) (notifier, error) {
	if err := unix.Mkfifo(path, 0o600); err != nil && err != unix.EEXIST {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &fifoNotify{fd: fd, path: path}, nil
}

type fifoNotify struct {
	fd   int
	path string
}

func (n *fifoNotify) Fd() uintptr { return uintptr(n.fd) }

func (n *fifoNotify) Set() error {
	_, err := unix.Write(n.fd, []byte{1})
	return err
}

func (n *fifoNotify) Drain() (bool, error) {
	var buf [64]byte
	got := false
	for {
		nread, err := unix.Read(n.fd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return got, nil
			}
			return got, err
		}
		if nread > 0 {
			got = true
		}
		if nread < len(buf) {
			return got, nil
		}
	}
}

func (n *fifoNotify) Close() error {
	err := unix.Close(n.fd)
	os.Remove(n.path)
	return err
}

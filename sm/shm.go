// File: sm/shm.go
// Shared-memory segment create/open, backing both the ring buffer and the
// copy pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmSegment is an mmap'd region plus the descriptor and name needed to
// unlink it on teardown by whichever side created it.
type shmSegment struct {
	mem     []byte
	fd      int
	name    string
	creator bool
}

func shmPath(name string) string {
	return filepath.Join(defaultShmDir, name)
}

// createShmSegment creates (or truncates) a named segment of size bytes and
// maps it read-write, shared.
func createShmSegment(name string, size int) (*shmSegment, error) {
	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sm: create shm %s: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sm: ftruncate shm %s: %w", name, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sm: mmap shm %s: %w", name, err)
	}
	return &shmSegment{mem: mem, fd: fd, name: name, creator: true}, nil
}

// openShmSegment maps an existing named segment of size bytes, created by a
// peer on the other side of the handshake.
func openShmSegment(name string, size int) (*shmSegment, error) {
	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("sm: open shm %s: %w", name, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sm: mmap shm %s: %w", name, err)
	}
	return &shmSegment{mem: mem, fd: fd, name: name, creator: false}, nil
}

// close unmaps the segment and, if this side created it, unlinks its name.
func (s *shmSegment) close() error {
	err := unix.Munmap(s.mem)
	unix.Close(s.fd)
	if s.creator {
		unix.Unlink(shmPath(s.name))
	}
	return err
}

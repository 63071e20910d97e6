//go:build linux
// +build linux

// control/cleanup_linux.go
// Author: momentics <momentics@gmail.com>
//
// Out-of-context cleanup() entry point: scans the tmp directory
// hierarchy and /dev/shm for residue left by crashed prior runs owned by the
// same user, removing entries whose pid is no longer alive.

package control

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Cleanup removes stale SM sockets/FIFOs under <tmpDir>/<prefix>_<user>/ and
// stale shared-memory segments under shmDir named <prefix>_<user>-<pid>*,
// for any pid that unix.Kill(pid, 0) reports as gone. It returns every path
// it removed.
func Cleanup(tmpDir, shmDir, prefix, user string) ([]string, error) {
	var removed []string
	root := filepath.Join(tmpDir, prefix+"_"+user)

	entries, err := os.ReadDir(root)
	if err == nil {
		for _, e := range entries {
			pid, perr := strconv.Atoi(e.Name())
			if perr != nil {
				continue
			}
			if pidAlive(pid) {
				continue
			}
			full := filepath.Join(root, e.Name())
			if err := os.RemoveAll(full); err == nil {
				removed = append(removed, full)
			}
		}
	}

	shmPrefix := prefix + "_" + user + "-"
	shmEntries, err := os.ReadDir(shmDir)
	if err == nil {
		for _, e := range shmEntries {
			name := e.Name()
			if !strings.HasPrefix(name, shmPrefix) {
				continue
			}
			rest := strings.TrimPrefix(name, shmPrefix)
			pidStr := rest
			if idx := strings.IndexByte(rest, '-'); idx >= 0 {
				pidStr = rest[:idx]
			}
			pid, perr := strconv.Atoi(pidStr)
			if perr != nil {
				continue
			}
			if pidAlive(pid) {
				continue
			}
			full := filepath.Join(shmDir, name)
			if err := os.Remove(full); err == nil {
				removed = append(removed, full)
			}
		}
	}

	return removed, nil
}

// pidAlive reports whether pid still exists, via the signal-0 idiom: Kill
// with signal 0 performs no delivery but still validates the pid.
func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}

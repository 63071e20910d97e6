//go:build !linux
// +build !linux

// control/cleanup_other.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux stub: the SM transport is Linux-only (eventfd, process_vm_readv,
// SOCK_SEQPACKET), so there is no residue to scan elsewhere.

package control

// Cleanup is a no-op on platforms where the SM plugin never runs.
func Cleanup(tmpDir, shmDir, prefix, user string) ([]string, error) {
	return nil, nil
}

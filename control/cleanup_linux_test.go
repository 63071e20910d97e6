//go:build linux
// +build linux

package control

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPidAlive_CurrentProcessIsAlive(t *testing.T) {
	if !pidAlive(os.Getpid()) {
		t.Fatal("expected the current process to report alive")
	}
}

func TestPidAlive_ReapedPidReportsDead(t *testing.T) {
	// PID 1 always exists on Linux; an absurdly large PID almost certainly
	// does not, matching how Cleanup distinguishes crashed-owner residue.
	if pidAlive(1<<30 - 1) {
		t.Skip("unexpectedly large pid is alive in this environment")
	}
}

func TestCleanup_RemovesResidueForDeadPidOnly(t *testing.T) {
	tmpDir := t.TempDir()
	shmDir := t.TempDir()
	prefix := "na"
	user := "testuser"

	root := filepath.Join(tmpDir, prefix+"_"+user)
	deadPid := 1<<30 - 1
	livePid := os.Getpid()

	deadDir := filepath.Join(root, strconv.Itoa(deadPid))
	liveDir := filepath.Join(root, strconv.Itoa(livePid))
	if err := os.MkdirAll(deadDir, 0o700); err != nil {
		t.Fatalf("mkdir dead: %v", err)
	}
	if err := os.MkdirAll(liveDir, 0o700); err != nil {
		t.Fatalf("mkdir live: %v", err)
	}

	deadShm := filepath.Join(shmDir, prefix+"_"+user+"-"+strconv.Itoa(deadPid)+"-0")
	liveShm := filepath.Join(shmDir, prefix+"_"+user+"-"+strconv.Itoa(livePid)+"-0")
	os.WriteFile(deadShm, []byte{0}, 0o600)
	os.WriteFile(liveShm, []byte{0}, 0o600)

	removed, err := Cleanup(tmpDir, shmDir, prefix, user)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if _, err := os.Stat(deadDir); !os.IsNotExist(err) {
		t.Fatal("expected dead pid's socket directory to be removed")
	}
	if _, err := os.Stat(liveDir); err != nil {
		t.Fatal("expected live pid's socket directory to survive")
	}
	if _, err := os.Stat(deadShm); !os.IsNotExist(err) {
		t.Fatal("expected dead pid's shm segment to be removed")
	}
	if _, err := os.Stat(liveShm); err != nil {
		t.Fatal("expected live pid's shm segment to survive")
	}

	if len(removed) != 2 {
		t.Fatalf("expected 2 removed paths, got %d: %v", len(removed), removed)
	}
}

func TestCleanup_MissingDirsIsNotAnError(t *testing.T) {
	tmpDir := t.TempDir()
	shmDir := t.TempDir()
	if _, err := Cleanup(filepath.Join(tmpDir, "nope"), filepath.Join(shmDir, "nope"), "na", "nobody"); err != nil {
		t.Fatalf("expected no error for nonexistent roots, got %v", err)
	}
}

//go:build linux
// +build linux

package control

import "testing"

func TestRegisterPlatformProbes_AddsCPUProbe(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)

	dump := dp.DumpState()
	cpus, ok := dump["platform.cpus"].(int)
	if !ok || cpus < 1 {
		t.Fatalf("expected a positive cpu count probe, got %v", dump["platform.cpus"])
	}
}

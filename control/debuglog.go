// control/debuglog.go
// Author: momentics <momentics@gmail.com>
//
// HG_NA_LOG_LEVEL-gated debug logging. This package carries no logging
// library; a plain env-gated fmt.Fprintf is enough for the single
// debug/off distinction it needs.

package control

import (
	"fmt"
	"os"
	"sync"
)

var (
	debugOnce    sync.Once
	debugEnabled bool
)

func debugMaskEnabled() bool {
	debugOnce.Do(func() {
		debugEnabled = os.Getenv("HG_NA_LOG_LEVEL") == "debug"
	})
	return debugEnabled
}

// Debugf writes a formatted debug line to stderr iff HG_NA_LOG_LEVEL=debug.
func Debugf(format string, args ...any) {
	if !debugMaskEnabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[na debug] "+format+"\n", args...)
}

// Package control
// Author: momentics <momentics@gmail.com>
//
// Hot-reload, runtime metrics, configuration control, and debug introspection
// layer for the NA class.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Runtime observers for hot-reload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//   - HG_NA_LOG_LEVEL-gated debug logging and the out-of-context cleanup()
//     entry point
//
// This package is cross-platform and build-tag-partitioned as needed.
package control

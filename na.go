// File: na.go
// Package na is the root façade: it pulls in the SM plugin (registering it
// first so it serves as the default plugin for local addresses) and
// re-exports the class lifecycle entry points.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package na

import (
	"github.com/momentics/na/api"
	corena "github.com/momentics/na/core/na"

	_ "github.com/momentics/na/sm" // registers the sm plugin via init()
)

// Class is a live NA class instance.
type Class = corena.Class

// Context is an execution context attached to a Class.
type Context = corena.Context

// InitOptions carries progress-mode flags and plugin-specific overrides.
type InitOptions = api.InitOptions

// Init parses uri, selects a registered plugin, and brings it up.
func Init(uri string, opts *InitOptions, listen bool) (*Class, error) {
	return corena.Init(uri, opts, listen)
}

// Register adds a plugin to the global registry; exposed so an out-of-tree
// transport can participate the way sm does via its own init().
var Register = corena.Register

// File: api/address.go
// Package api defines the opaque peer-address contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Addr identifies a peer known to some plugin. Concrete plugins (e.g. sm.Addr)
// embed their own fields; NA core and callers only ever see this interface.
// Lifetime is manually reference counted: every queue insertion,
// callback attachment, and Dup all hold a reference; the address is freed
// only once the count drops to zero.
type Addr interface {
	// String renders the address the way the plugin's AddrToString would,
	// e.g. "sm://12345/0".
	String() string

	// Dup takes a new reference and returns the same logical address.
	Dup() Addr

	// Release drops a reference, freeing the address once it reaches zero.
	Release()

	// Equal reports whether two addresses name the same peer.
	Equal(other Addr) bool

	// Self reports whether this address names the local class instance.
	Self() bool
}

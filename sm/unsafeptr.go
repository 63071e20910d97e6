// File: sm/unsafeptr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import "unsafe"

// unsafePtr reinterprets a raw address stored in an api.Segment as a *byte
// for iovec construction. The address is only ever dereferenced by the
// kernel during process_vm_readv/writev, in the owning process's address
// space — this package never
// reads through it directly.
func unsafePtr(addr uintptr) *byte {
	return (*byte)(unsafe.Pointer(addr))
}

// File: sm/stagedmsg.go
// Heap-staged unexpected message, queued when a SEND_UNEXPECTED header
// drains before any matching recv has been posted.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

// stagedMsg holds a payload copied out of the copy pool because no
// unexpected-recv op-id was waiting when its header arrived.
type stagedMsg struct {
	source *Addr
	tag    uint32
	data   []byte
}

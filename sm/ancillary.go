// File: sm/ancillary.go
// SCM_RIGHTS fd passing for the accept-side handshake message: sends
// conn_id plus both notify fds as ancillary data.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// sendAncillaryHandshake sends connID as the message payload and
// (localFD, remoteFD) as SCM_RIGHTS ancillary data over fd.
func sendAncillaryHandshake(fd, connID, localFD, remoteFD int) error {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], uint32(connID))
	rights := unix.UnixRights(localFD, remoteFD)
	return unix.Sendmsg(fd, payload[:], rights, nil, 0)
}

// recvAncillaryHandshake reads connID plus two passed descriptors. ok is
// false on EAGAIN or a malformed message (no progress this round).
func recvAncillaryHandshake(fd int) (connID, localFD, remoteFD int, ok bool) {
	payload := make([]byte, 4)
	oob := make([]byte, unix.CmsgSpace(2*4))
	n, oobn, _, _, err := unix.Recvmsg(fd, payload, oob, 0)
	if err != nil || n < 4 {
		return 0, 0, 0, false
	}
	connID = int(binary.LittleEndian.Uint32(payload))

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil || len(scms) == 0 {
		return 0, 0, 0, false
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) < 2 {
		return 0, 0, 0, false
	}
	// The peer designated the first fd as its own local notify, the second
	// as ours; from our side the roles swap ("swap local/remote
	// notify — our local is what the peer designated as remote").
	return connID, fds[1], fds[0], true
}

// File: sm/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sm

import "github.com/momentics/na/api"

var (
	errAgain          = api.ErrAgain
	errBusy           = api.ErrBusy
	errTimeout        = api.ErrTimeout
	errOpNotSupported = api.ErrOpNotSupported
)

func invalidArg(msg string) error { return api.NewError(api.ErrCodeInvalidArg, msg) }
func overflow(msg string) error   { return api.NewError(api.ErrCodeOverflow, msg) }
func msgSizeErr(msg string) error { return api.NewError(api.ErrCodeMsgSize, msg) }
func permission(msg string) error { return api.NewError(api.ErrCodePermission, msg) }
func protocolErr(msg string) error {
	return api.NewError(api.ErrCodeProtocolError, msg)
}
func faultErr(msg string) error { return api.NewError(api.ErrCodeFault, msg) }

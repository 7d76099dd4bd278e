package transport

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	// ErrTransport indicates a network, HTTP, or decode failure talking to
	// a device.
	ErrTransport = errors.New("transport: request failed")

	// ErrResponseCode indicates the device answered with a non-zero
	// response_code.
	ErrResponseCode = errors.New("transport: device rejected request")
)

// responseCodeText names the documented Extended Control response codes.
var responseCodeText = map[int]string{
	0:   "successful",
	1:   "initializing",
	2:   "internal error",
	3:   "invalid request",
	4:   "invalid parameter",
	5:   "guarded",
	6:   "timeout",
	99:  "firmware updating",
	100: "access error",
	101: "other error",
	102: "wrong user name",
	103: "wrong password",
	104: "account expired",
	105: "account disconnected",
	110: "server maintenance",
	115: "simultaneous logins reached",
}

// ResponseError carries a device's non-zero response_code together with the
// endpoint that produced it.
type ResponseError struct {
	Endpoint string
	Code     int
}

func (e *ResponseError) Error() string {
	text, ok := responseCodeText[e.Code]
	if !ok {
		text = "unknown"
	}
	return fmt.Sprintf("transport: device rejected request: %s returned code %d (%s)", e.Endpoint, e.Code, text)
}

// Is makes ResponseError match ErrResponseCode and ErrTransport.
func (e *ResponseError) Is(target error) bool {
	return target == ErrResponseCode || target == ErrTransport
}

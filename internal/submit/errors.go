// internal/submit/errors.go
package submit

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed call to the submission API.
type ErrorKind string

const (
	KindEncoding  ErrorKind = "encoding"  // request body could not be built
	KindTransport ErrorKind = "transport" // connection failure or timeout
	KindRejection ErrorKind = "rejection" // API answered with a non-2xx status
)

// Error is returned by every Client operation that fails.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit %s: %s: status %d: %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was the per-request deadline firing.
func (e *Error) Timeout() bool {
	if e.Kind != KindTransport {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

func encodingError(op string, err error) *Error {
	return &Error{Kind: KindEncoding, Op: op, Err: err}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func rejectionError(op string, status int, err error) *Error {
	return &Error{Kind: KindRejection, Op: op, StatusCode: status, Err: err}
}

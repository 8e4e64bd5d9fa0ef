package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrorRemoteRejected    ErrorCode = "REMOTE_REJECTED"
	ErrorInvalidThread     ErrorCode = "INVALID_THREAD"
	ErrorInvalidRun        ErrorCode = "INVALID_RUN"
	ErrorIngestionFailed   ErrorCode = "INGESTION_FAILED"
	ErrorRunTimeout        ErrorCode = "RUN_TIMEOUT"
	ErrorActionRequired    ErrorCode = "ACTION_REQUIRED"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// classifyRemoteError maps a failed remote call into the error taxonomy:
// an HTTP 404 means the referenced resource is gone (notFoundCode), any
// other HTTP status is an application-level rejection, and everything else
// is a transport failure.
func classifyRemoteError(reason string, err error, notFoundCode ErrorCode) *Error {
	status, ok := upstreamStatusCode(err)
	if !ok {
		return newError(ErrorRemoteUnavailable, reason, err)
	}
	if status == http.StatusNotFound {
		return newError(notFoundCode, reason, err)
	}
	return newError(ErrorRemoteRejected, reason, err)
}

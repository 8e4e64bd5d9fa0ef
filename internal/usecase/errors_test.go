package usecase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// expectUseCaseError asserts that err is a *Error with the given code and reason.
func expectUseCaseError(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	require.Error(t, err)
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
	require.Equal(t, reason, ucErr.Reason)
	return ucErr
}

// statusError is a minimal stand-in for upstream HTTP status failures.
type statusError struct {
	status int
}

func (e *statusError) Error() string       { return fmt.Sprintf("status %d", e.status) }
func (e *statusError) HTTPStatusCode() int { return e.status }

func TestClassifyRemoteError(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		notFoundCode ErrorCode
		wantCode     ErrorCode
	}{
		{
			name:         "TransportFailureIsUnavailable",
			err:          errors.New("connection refused"),
			notFoundCode: ErrorInvalidThread,
			wantCode:     ErrorRemoteUnavailable,
		},
		{
			name:         "NotFoundMapsToCallerCode",
			err:          &statusError{status: 404},
			notFoundCode: ErrorInvalidThread,
			wantCode:     ErrorInvalidThread,
		},
		{
			name:         "NotFoundMapsToRunCode",
			err:          &statusError{status: 404},
			notFoundCode: ErrorInvalidRun,
			wantCode:     ErrorInvalidRun,
		},
		{
			name:         "OtherStatusIsRejected",
			err:          &statusError{status: 429},
			notFoundCode: ErrorInvalidThread,
			wantCode:     ErrorRemoteRejected,
		},
		{
			name:         "ServerErrorIsRejected",
			err:          &statusError{status: 500},
			notFoundCode: ErrorInvalidRun,
			wantCode:     ErrorRemoteRejected,
		},
		{
			name:         "WrappedStatusIsUnwrapped",
			err:          fmt.Errorf("call failed: %w", &statusError{status: 404}),
			notFoundCode: ErrorInvalidThread,
			wantCode:     ErrorInvalidThread,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRemoteError("some_reason", tc.err, tc.notFoundCode)
			require.Equal(t, tc.wantCode, got.Code)
			require.Equal(t, "some_reason", got.Reason)
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestError_Message(t *testing.T) {
	err := newError(ErrorRunTimeout, "run_wait_deadline_exceeded", nil)
	require.Contains(t, err.Error(), "RUN_TIMEOUT")
	require.Contains(t, err.Error(), "run_wait_deadline_exceeded")

	wrapped := newError(ErrorInternal, "dynamodb_write_error", errors.New("throttled"))
	require.Contains(t, wrapped.Error(), "throttled")
	require.EqualError(t, errors.Unwrap(wrapped), "throttled")
}

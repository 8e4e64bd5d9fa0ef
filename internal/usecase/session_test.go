package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"review-agent/internal/domain"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

// fakeThreadAPI keeps an in-memory message log per call sequence so ordering
// properties can be asserted against real insertion order.
type fakeThreadAPI struct {
	createThreadErr  error
	createMessageErr error
	listErr          error

	nextMsg int
	msgs    []domain.Message
}

func (f *fakeThreadAPI) CreateThread(_ context.Context) (domain.Thread, error) {
	if f.createThreadErr != nil {
		return domain.Thread{}, f.createThreadErr
	}
	return domain.Thread{ID: "thread_1"}, nil
}

func (f *fakeThreadAPI) CreateMessage(_ context.Context, threadID string, role domain.MessageRole, content string) (domain.Message, error) {
	if f.createMessageErr != nil {
		return domain.Message{}, f.createMessageErr
	}
	f.nextMsg++
	msg := domain.Message{
		ID:       fmt.Sprintf("msg_%d", f.nextMsg),
		ThreadID: threadID,
		Role:     role,
		Parts:    []domain.MessagePart{{Type: "text", Text: content}},
	}
	f.msgs = append(f.msgs, msg)
	return msg, nil
}

func (f *fakeThreadAPI) ListMessages(_ context.Context, threadID string, order domain.SortOrder) ([]domain.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Message, len(f.msgs))
	copy(out, f.msgs)
	if order == domain.SortDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// NewSessionService
// ---------------------------------------------------------------------------

func TestNewSessionService_NilAPI(t *testing.T) {
	_, err := NewSessionService(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestSessionCreate_HappyPath(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{})
	require.NoError(t, err)

	thread, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, "thread_1", thread.ID)
}

func TestSessionCreate_TransportError(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{createThreadErr: errors.New("connection refused")})
	require.NoError(t, err)

	_, err = svc.Create(context.Background())
	expectUseCaseError(t, err, ErrorRemoteUnavailable, "thread_create_error")
}

func TestSessionCreate_UpstreamRejection(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{createThreadErr: &statusError{status: 500}})
	require.NoError(t, err)

	_, err = svc.Create(context.Background())
	expectUseCaseError(t, err, ErrorRemoteRejected, "thread_create_error")
}

// ---------------------------------------------------------------------------
// Append
// ---------------------------------------------------------------------------

func TestSessionAppend_HappyPath(t *testing.T) {
	api := &fakeThreadAPI{}
	svc, err := NewSessionService(api)
	require.NoError(t, err)

	msg, err := svc.Append(context.Background(), "thread_1", "2+2?")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, msg.Role)
	require.Equal(t, "2+2?", msg.Text())
	require.Len(t, api.msgs, 1)
}

func TestSessionAppend_EmptyContent(t *testing.T) {
	api := &fakeThreadAPI{}
	svc, err := NewSessionService(api)
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), "thread_1", "   ")
	expectUseCaseError(t, err, ErrorInvalidInput, "empty_message")
	require.Empty(t, api.msgs, "empty content must never reach the remote service")
}

func TestSessionAppend_UnknownThread(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{createMessageErr: &statusError{status: 404}})
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), "thread_gone", "hello")
	expectUseCaseError(t, err, ErrorInvalidThread, "message_append_error")
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func TestSessionMessages_OrderMatchesAppendOrder(t *testing.T) {
	api := &fakeThreadAPI{}
	svc, err := NewSessionService(api)
	require.NoError(t, err)

	contents := []string{"first", "second", "third", "fourth"}
	for _, c := range contents {
		_, err := svc.Append(context.Background(), "thread_1", c)
		require.NoError(t, err)
	}

	asc, err := svc.Messages(context.Background(), "thread_1", domain.SortAscending)
	require.NoError(t, err)
	require.Len(t, asc, len(contents))
	for i, c := range contents {
		require.Equal(t, c, asc[i].Text())
	}

	desc, err := svc.Messages(context.Background(), "thread_1", domain.SortDescending)
	require.NoError(t, err)
	require.Len(t, desc, len(contents))
	for i := range contents {
		require.Equal(t, contents[len(contents)-1-i], desc[i].Text())
	}
}

func TestSessionMessages_RepeatableWithoutAppends(t *testing.T) {
	api := &fakeThreadAPI{}
	svc, err := NewSessionService(api)
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), "thread_1", "only message")
	require.NoError(t, err)

	first, err := svc.Messages(context.Background(), "thread_1", domain.SortAscending)
	require.NoError(t, err)
	second, err := svc.Messages(context.Background(), "thread_1", domain.SortAscending)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSessionMessages_UnknownThread(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{listErr: &statusError{status: 404}})
	require.NoError(t, err)

	_, err = svc.Messages(context.Background(), "thread_gone", domain.SortAscending)
	expectUseCaseError(t, err, ErrorInvalidThread, "message_list_error")
}

func TestSessionMessages_TransportError(t *testing.T) {
	svc, err := NewSessionService(&fakeThreadAPI{listErr: errors.New("timeout")})
	require.NoError(t, err)

	_, err = svc.Messages(context.Background(), "thread_1", domain.SortAscending)
	expectUseCaseError(t, err, ErrorRemoteUnavailable, "message_list_error")
}

package usecase

import (
	"context"
	"errors"
	"strings"

	"review-agent/internal/domain"
)

// ThreadAPI is the remote thread surface required by SessionService.
type ThreadAPI interface {
	CreateThread(ctx context.Context) (domain.Thread, error)
	CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) (domain.Message, error)
	ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.Message, error)
}

// SessionService owns the client's view of one remote thread: an ordered,
// append-only message log. All state of record lives remotely; this service
// only translates calls and classifies failures.
type SessionService struct {
	api ThreadAPI
}

func NewSessionService(api ThreadAPI) (*SessionService, error) {
	if api == nil {
		return nil, errors.New("usecase: thread api must not be nil")
	}
	return &SessionService{api: api}, nil
}

// Create requests a new empty thread from the remote service.
func (s *SessionService) Create(ctx context.Context) (domain.Thread, error) {
	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		return domain.Thread{}, classifyRemoteError("thread_create_error", err, ErrorRemoteRejected)
	}
	return thread, nil
}

// Append adds one user message to the thread. Appends are synchronous, so
// issue order is insertion order.
func (s *SessionService) Append(ctx context.Context, threadID, content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	msg, err := s.api.CreateMessage(ctx, threadID, domain.RoleUser, content)
	if err != nil {
		return domain.Message{}, classifyRemoteError("message_append_error", err, ErrorInvalidThread)
	}
	return msg, nil
}

// Messages returns the thread's full message log in the requested insertion
// order. Read-only and repeatable: two calls with no intervening append
// return identical sequences.
func (s *SessionService) Messages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.Message, error) {
	msgs, err := s.api.ListMessages(ctx, threadID, order)
	if err != nil {
		return nil, classifyRemoteError("message_list_error", err, ErrorInvalidThread)
	}
	return msgs, nil
}

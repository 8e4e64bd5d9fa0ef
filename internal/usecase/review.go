package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"review-agent/internal/domain"
)

const (
	defaultMaxQuestion = 4000
	maxThreadTurns     = 10
	assistantName      = "Review Assistant"
)

// retrievalTool must be enabled on the assistant before attached files
// affect any run.
var retrievalTool = domain.Tool{Type: "retrieval"}

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// AssistantAPI is the remote assistant-configuration surface required by the
// ReviewService.
type AssistantAPI interface {
	CreateAssistant(ctx context.Context, cfg domain.AssistantConfig) (domain.AssistantConfig, error)
	UpdateAssistant(ctx context.Context, assistantID string, tools []domain.Tool, fileIDs []string) (domain.AssistantConfig, error)
}

// DocumentIngestor uploads local files and returns their document references.
type DocumentIngestor interface {
	Ingest(ctx context.Context, paths []string) ([]domain.DocumentRef, []UploadFailure)
}

// SessionAPI is the thread surface required by the ReviewService.
// *SessionService satisfies this.
type SessionAPI interface {
	Create(ctx context.Context) (domain.Thread, error)
	Messages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.Message, error)
}

// RunSubmitter drives one run to a terminal state. *RunController satisfies
// this.
type RunSubmitter interface {
	Submit(ctx context.Context, threadID, assistantID, userMessage string) (domain.Run, error)
	WaitUntilTerminal(ctx context.Context, run domain.Run, opts WaitOptions) (domain.Run, error)
}

// StateReadWriter archives completed turns. The remote service stays the
// state of record for the conversation itself.
type StateReadWriter interface {
	GetTurnCount(ctx context.Context, threadID string) (int, error)
	SaveCompletedTurn(ctx context.Context, threadID, question, answer, runID string, turns int) error
}

// ReviewService composes ingestion, assistant configuration, thread
// management, and run control into one conversation turn.
type ReviewService struct {
	params      ParamGetter
	assistants  AssistantAPI
	ingestor    DocumentIngestor
	sessions    SessionAPI
	runs        RunSubmitter
	state       StateReadWriter
	paramPrefix string
	maxQuestion int

	// cached assistant configuration, loaded from SSM and (when no
	// assistant ID was configured) created remotely on first use.
	cacheMu     sync.RWMutex
	cacheLoaded bool
	assistant   domain.AssistantConfig
}

// TurnInput describes one conversation turn. An empty ThreadID starts a new
// thread; a non-empty one resumes an existing thread subject to the turn cap.
type TurnInput struct {
	Question      string
	ThreadID      string
	DocumentPaths []string
	PollInterval  time.Duration
	MaxWait       time.Duration
}

// TurnOutput is the result of one turn. Run carries the terminal status the
// caller must inspect: failed and cancelled runs are normal output, not
// errors. IngestFailures lists the document paths that could not be uploaded;
// the turn proceeds with the successful subset.
type TurnOutput struct {
	ThreadID       string
	Run            domain.Run
	Messages       []domain.Message
	Documents      []domain.DocumentRef
	IngestFailures []UploadFailure
}

// Answer returns the text of the last assistant message, or "" when the run
// produced none.
func (o TurnOutput) Answer() string {
	for i := len(o.Messages) - 1; i >= 0; i-- {
		if o.Messages[i].Role == domain.RoleAssistant {
			return o.Messages[i].Text()
		}
	}
	return ""
}

func NewReviewService(p ParamGetter, a AssistantAPI, ing DocumentIngestor, s SessionAPI, r RunSubmitter, st StateReadWriter, paramPrefix, assistantID string, maxQuestionLen int) (*ReviewService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if a == nil {
		return nil, errors.New("usecase: assistant api must not be nil")
	}
	if ing == nil {
		return nil, errors.New("usecase: ingestor must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: session api must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: run submitter must not be nil")
	}
	if st == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	return &ReviewService{
		params:      p,
		assistants:  a,
		ingestor:    ing,
		sessions:    s,
		runs:        r,
		state:       st,
		paramPrefix: paramPrefix,
		maxQuestion: maxQuestionLen,
		assistant:   domain.AssistantConfig{ID: strings.TrimSpace(assistantID)},
	}, nil
}

// RunTurn executes one conversation turn end to end: optional document
// ingestion, assistant configuration update, thread creation, run submission,
// poll to terminal, transcript fetch, and turn archival. Any failure aborts
// the remaining sequence; partial remote state (an already-created thread,
// uploaded files) is left as is.
func (s *ReviewService) RunTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return TurnOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if len(question) > s.maxQuestion {
		return TurnOutput{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}

	if err := s.ensureAssistant(ctx); err != nil {
		return TurnOutput{}, err
	}

	out := TurnOutput{}

	if len(in.DocumentPaths) > 0 {
		refs, failures := s.ingestor.Ingest(ctx, in.DocumentPaths)
		out.Documents = refs
		out.IngestFailures = failures
		if len(refs) == 0 {
			return TurnOutput{}, newError(ErrorIngestionFailed, "all_uploads_failed", joinUploadErrors(failures))
		}
		if err := s.attachDocuments(ctx, refs); err != nil {
			return TurnOutput{}, err
		}
	}

	existingTurns := 0
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		thread, err := s.sessions.Create(ctx)
		if err != nil {
			return TurnOutput{}, err
		}
		threadID = thread.ID
	} else {
		turns, err := s.state.GetTurnCount(ctx, threadID)
		if err != nil {
			return TurnOutput{}, newError(ErrorInternal, "dynamodb_turn_count_error", err)
		}
		existingTurns = turns
		if existingTurns >= maxThreadTurns {
			return TurnOutput{}, newError(ErrorInvalidInput, "thread_turn_limit", nil)
		}
	}
	out.ThreadID = threadID

	run, err := s.runs.Submit(ctx, threadID, s.assistantID(), question)
	if err != nil {
		return TurnOutput{}, err
	}

	final, err := s.runs.WaitUntilTerminal(ctx, run, WaitOptions{
		PollInterval: in.PollInterval,
		MaxWait:      in.MaxWait,
	})
	if err != nil {
		return TurnOutput{}, err
	}
	out.Run = final

	msgs, err := s.sessions.Messages(ctx, threadID, domain.SortAscending)
	if err != nil {
		return TurnOutput{}, err
	}
	out.Messages = msgs

	if final.Status == domain.RunCompleted {
		if err := s.state.SaveCompletedTurn(ctx, threadID, question, out.Answer(), final.ID, existingTurns+1); err != nil {
			return TurnOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
		}
	}

	return out, nil
}

// ensureAssistant loads the assistant parameters from SSM once per process
// and, when no assistant ID was configured, creates the remote assistant and
// caches the issued ID for subsequent turns.
func (s *ReviewService) ensureAssistant(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	instructions, model, err := s.loadAssistantParams(ctx)
	if err != nil {
		return newError(ErrorInternal, "ssm_load_error", err)
	}

	s.assistant.Name = assistantName
	s.assistant.Model = model
	s.assistant.Instructions = instructions
	if s.assistant.ID == "" {
		created, err := s.assistants.CreateAssistant(ctx, s.assistant)
		if err != nil {
			return classifyRemoteError("assistant_create_error", err, ErrorRemoteRejected)
		}
		s.assistant = created
	}
	s.cacheLoaded = true
	return nil
}

func (s *ReviewService) loadAssistantParams(ctx context.Context) (instructions, model string, err error) {
	prefix := strings.TrimRight(s.paramPrefix, "/")

	instructions, err = s.params.GetParameter(ctx, prefix+"/assistant_instructions")
	if err != nil {
		return "", "", fmt.Errorf("usecase: load assistant instructions: %w", err)
	}
	model, err = s.params.GetParameter(ctx, prefix+"/config/openai_model")
	if err != nil {
		return "", "", fmt.Errorf("usecase: load openai model: %w", err)
	}
	return instructions, model, nil
}

// attachDocuments replaces the assistant's file set with the union of the
// prior set and the newly issued references, enabling the retrieval tool so
// the files take effect on subsequent runs.
func (s *ReviewService) attachDocuments(ctx context.Context, refs []domain.DocumentRef) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	fileIDs := unionFileIDs(s.assistant.FileIDs, refs)
	tools := ensureRetrievalTool(s.assistant.Tools)

	updated, err := s.assistants.UpdateAssistant(ctx, s.assistant.ID, tools, fileIDs)
	if err != nil {
		return classifyRemoteError("assistant_update_error", err, ErrorRemoteRejected)
	}
	s.assistant = updated
	return nil
}

func (s *ReviewService) assistantID() string {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.assistant.ID
}

func unionFileIDs(existing []string, refs []domain.DocumentRef) []string {
	seen := make(map[string]struct{}, len(existing)+len(refs))
	out := make([]string, 0, len(existing)+len(refs))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, ref := range refs {
		if _, ok := seen[ref.FileID]; ok {
			continue
		}
		seen[ref.FileID] = struct{}{}
		out = append(out, ref.FileID)
	}
	return out
}

func ensureRetrievalTool(tools []domain.Tool) []domain.Tool {
	for _, t := range tools {
		if t.Type == retrievalTool.Type {
			return tools
		}
	}
	return append(append([]domain.Tool{}, tools...), retrievalTool)
}

func joinUploadErrors(failures []UploadFailure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

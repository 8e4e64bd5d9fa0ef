package usecase

import (
	"context"
	"errors"
	"time"

	"review-agent/internal/domain"
)

const defaultPollInterval = 500 * time.Millisecond

// RunAPI is the remote run surface required by the RunController.
type RunAPI interface {
	CreateRun(ctx context.Context, threadID, assistantID string) (domain.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (domain.Run, error)
}

// MessageAppender appends one user message to a thread before a run is
// submitted. *SessionService satisfies this.
type MessageAppender interface {
	Append(ctx context.Context, threadID, content string) (domain.Message, error)
}

// Clock abstracts wall time for the poll loop so tests can simulate waiting
// without real delay. Sleep must return early with the context error when
// the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitOptions bounds the poll loop. A zero MaxWait means wait indefinitely.
type WaitOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// RunController submits runs and drives them to a terminal state by polling
// the remote service. It never mutates a run: every poll is a single
// idempotent status read, and status transitions are the service's alone.
type RunController struct {
	api      RunAPI
	appender MessageAppender
	clock    Clock
}

func NewRunController(api RunAPI, appender MessageAppender) (*RunController, error) {
	if api == nil {
		return nil, errors.New("usecase: run api must not be nil")
	}
	if appender == nil {
		return nil, errors.New("usecase: message appender must not be nil")
	}
	return &RunController{api: api, appender: appender, clock: systemClock{}}, nil
}

// Submit appends userMessage to the thread (when non-empty) and then asks the
// remote service to create a run binding the assistant to the thread. It
// returns immediately with whatever status the service reports.
func (c *RunController) Submit(ctx context.Context, threadID, assistantID, userMessage string) (domain.Run, error) {
	if userMessage != "" {
		if _, err := c.appender.Append(ctx, threadID, userMessage); err != nil {
			return domain.Run{}, err
		}
	}
	run, err := c.api.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return domain.Run{}, classifyRemoteError("run_create_error", err, ErrorInvalidThread)
	}
	return run, nil
}

// WaitUntilTerminal re-fetches the run's status at the configured interval
// until it reaches completed, failed, or cancelled, and returns the terminal
// run. A terminal failed or cancelled status is a normal return value, not an
// error; only infrastructure problems are errors.
//
// If MaxWait elapses first, the wait stops with a RUN_TIMEOUT error and the
// remote run continues independently; no read happens after the deadline and
// no cancelling call is ever made. A requires_action status also stops the
// wait, surfaced as ACTION_REQUIRED: this client submits no tool outputs, so
// such a run would otherwise be polled forever.
func (c *RunController) WaitUntilTerminal(ctx context.Context, run domain.Run, opts WaitOptions) (domain.Run, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	var deadline time.Time
	if opts.MaxWait > 0 {
		deadline = c.clock.Now().Add(opts.MaxWait)
	}

	for {
		if !deadline.IsZero() && !c.clock.Now().Before(deadline) {
			return run, newError(ErrorRunTimeout, "run_wait_deadline_exceeded", nil)
		}

		cur, err := c.api.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, classifyRemoteError("run_poll_error", err, ErrorInvalidRun)
		}
		run = cur

		if run.Status.Terminal() {
			return run, nil
		}
		if run.Status == domain.RunRequiresAction {
			return run, newError(ErrorActionRequired, "run_requires_action", nil)
		}

		if err := c.clock.Sleep(ctx, opts.PollInterval); err != nil {
			return run, newError(ErrorRunTimeout, "run_wait_cancelled", err)
		}
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"review-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// reviewUseCase is the orchestration surface the handler depends on.
type reviewUseCase interface {
	RunTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

type askRequest struct {
	Question string `json:"question"`
	ThreadID string `json:"threadId"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	ThreadID  string `json:"threadId"`
	RunStatus string `json:"runStatus"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handler adapts API Gateway proxy events to review turns. Documents are
// attached out of band (via the CLI); this surface only asks questions
// against the already-configured assistant.
type Handler struct {
	uc reviewUseCase
}

func NewHandler(uc reviewUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)

	var req askRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "malformed_body",
		}), nil
	}

	out, err := h.uc.RunTurn(ctx, usecase.TurnInput{
		Question: req.Question,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		status, code, reason := mapError(err)
		slog.Error("review turn failed", "correlationId", corrID, "code", code, "reason", reason, "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: code, Reason: reason}), nil
	}

	// A failed or cancelled run is normal output: the caller inspects
	// runStatus rather than receiving an error status.
	return jsonResponse(http.StatusOK, corrID, askResponse{
		Answer:    out.Answer(),
		ThreadID:  out.ThreadID,
		RunStatus: string(out.Run.Status),
	}), nil
}

func mapError(err error) (status int, code, reason string) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ""
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorInvalidThread, usecase.ErrorInvalidRun:
		return http.StatusNotFound, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorActionRequired:
		return http.StatusConflict, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorRunTimeout:
		return http.StatusGatewayTimeout, string(ucErr.Code), ucErr.Reason
	case usecase.ErrorRemoteUnavailable, usecase.ErrorRemoteRejected, usecase.ErrorIngestionFailed:
		return http.StatusBadGateway, string(ucErr.Code), ucErr.Reason
	default:
		return http.StatusInternalServerError, string(usecase.ErrorInternal), ucErr.Reason
	}
}

// correlationID returns the caller-supplied correlation ID (header match is
// case-insensitive) or generates a fresh one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == correlationHeader && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers: map[string]string{
				"Content-Type":    "application/json",
				correlationHeader: corrID,
			},
			Body: `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}

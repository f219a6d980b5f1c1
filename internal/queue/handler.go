// Package queue runs skills matching requests received over RabbitMQ.
package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/schemas"
	"github.com/spigell/skillmatch/internal/skills"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ResultSaver persists matching results.
type ResultSaver interface {
	SaveResult(ctx context.Context, runID uuid.UUID, jobID string, result *skills.Result) error
}

// Response is published for every consumed request.
type Response struct {
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	Result    *skills.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`

	// invalid marks bodies that can never succeed and must not be requeued.
	invalid bool
}

// Handler turns a raw request body into a response. It is independent of
// the transport.
type Handler struct {
	Matcher *skills.Matcher
	Store   ResultSaver
	RunID   uuid.UUID
	Logger  *zap.Logger
}

// Handle validates body, runs the matcher and optionally stores the result.
func (h *Handler) Handle(ctx context.Context, body []byte) Response {
	log := h.Logger
	if log == nil {
		log = zap.NewNop()
	}

	req, err := schemas.ParseRequest(body)
	if err != nil {
		id := requestID(body)
		log.Warn("rejecting malformed request", logger.Job(id), zap.Error(err))
		return Response{RequestID: id, Status: StatusFailed, Error: err.Error(), invalid: true}
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	log = log.With(logger.Job(id))

	result, err := h.Matcher.MatchSkills(ctx, req.CandidateSkills, req.RequiredSkills, req.PreferredSkills)
	if err != nil {
		log.Error("skills matching failed", zap.Error(err))
		return Response{RequestID: id, Status: StatusFailed, Error: err.Error()}
	}

	if h.Store != nil {
		if err := h.Store.SaveResult(ctx, h.RunID, id, result); err != nil {
			log.Warn("failed to store result", zap.Error(err))
		}
	}

	return Response{RequestID: id, Status: StatusCompleted, Result: result}
}

// requestID extracts the id from a body that failed validation, if any.
func requestID(body []byte) string {
	var partial struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(body, &partial); err != nil {
		return ""
	}
	if id, ok := partial.ID.(string); ok {
		return id
	}
	return ""
}

package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every command.
const (
	FieldBackend = "embedding_backend"
	FieldModel   = "embedding_model"
	FieldRunID   = "run_id"
	FieldJobID   = "job_id"
)

// Job tags an entry with the job posting or request being matched.
func Job(id string) zap.Field {
	return zap.String(FieldJobID, id)
}

// Embedding describes the embedding backend. Blank values are left out.
func Embedding(backend, model string) []zap.Field {
	var fields []zap.Field
	if backend = strings.TrimSpace(backend); backend != "" {
		fields = append(fields, zap.String(FieldBackend, backend))
	}
	if model = strings.TrimSpace(model); model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}
	return fields
}

// WithEmbedding returns log tagged with the embedding backend. A nil log
// becomes a no-op logger.
func WithEmbedding(log *zap.Logger, backend, model string) *zap.Logger {
	return with(log, Embedding(backend, model)...)
}

// WithRun tags every entry of log with the run identifier.
func WithRun(log *zap.Logger, runID string) *zap.Logger {
	if runID = strings.TrimSpace(runID); runID == "" {
		return with(log)
	}
	return with(log, zap.String(FieldRunID, runID))
}

func with(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

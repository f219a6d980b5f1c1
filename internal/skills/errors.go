package skills

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a synonym table that cannot be used for
// normalization. A matcher must not be constructed from such a table.
type ConfigurationError struct {
	Phrase     string
	Canonicals []string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if len(e.Canonicals) == 0 {
		return fmt.Sprintf("skill catalog: %s: %q", e.Reason, e.Phrase)
	}
	return fmt.Sprintf("skill catalog: %s: %q is claimed by %s", e.Reason, e.Phrase, strings.Join(e.Canonicals, ", "))
}

// EmbeddingBackendError wraps any failure of the embedding backend, including
// malformed output. The matching run that hit it produces no result.
type EmbeddingBackendError struct {
	Stage string
	Err   error
}

func (e *EmbeddingBackendError) Error() string {
	return fmt.Sprintf("embedding backend (%s): %v", e.Stage, e.Err)
}

func (e *EmbeddingBackendError) Unwrap() error {
	return e.Err
}

func backendError(stage string, format string, args ...any) error {
	return &EmbeddingBackendError{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Package schemas validates match requests against the embedded JSON Schema.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed match_request.schema.json
var matchRequestSchema string

var requestSchema = gojsonschema.NewStringLoader(matchRequestSchema)

// Request is a single skills matching request.
type Request struct {
	ID              string    `json:"id,omitempty"`
	CandidateSkills SkillList `json:"candidate_skills"`
	RequiredSkills  SkillList `json:"required_skills"`
	PreferredSkills SkillList `json:"preferred_skills,omitempty"`
}

// SkillList decodes a JSON array of skills, skipping entries that are not
// strings.
type SkillList []string

func (l *SkillList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		*l = nil
		return nil
	}

	out := make(SkillList, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// ValidateRequest checks a raw match request document.
func ValidateRequest(body []byte) error {
	result, err := gojsonschema.Validate(requestSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// ParseRequest validates body and decodes it.
func ParseRequest(body []byte) (*Request, error) {
	if err := ValidateRequest(body); err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

package domain

import (
	"errors"
	"fmt"
)

// Canonical errors for response-shape failures during orchestration. The HTTP
// boundary maps these to stable, user-safe messages; the raw model output is
// only ever logged.
var (
	// ErrNoTextContent indicates the model response carried no text blocks.
	ErrNoTextContent = errors.New("no text content in model response")

	// ErrNoJSONFound indicates the response text contained no bracketed JSON array.
	ErrNoJSONFound = errors.New("no JSON array found in model response")

	// ErrEmptyActivities indicates the model returned a JSON array with no elements.
	ErrEmptyActivities = errors.New("model returned an empty activities array")

	// ErrMissingAPIKey indicates the Anthropic API key is not configured.
	// This is fatal at startup and never retried.
	ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY is not set")
)

// MalformedJSONError wraps a JSON decode failure of the extracted array span.
type MalformedJSONError struct {
	Err error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed JSON in model response: %v", e.Err)
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

// InvalidActivityError reports the first activity record that failed schema
// validation. The whole batch is rejected; invalid elements are never dropped
// silently.
type InvalidActivityError struct {
	Index int
	Field string
}

func (e *InvalidActivityError) Error() string {
	return fmt.Sprintf("activity at index %d is missing required field %q", e.Index, e.Field)
}

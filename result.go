package persuader

import (
	"encoding/json"
	"fmt"
	"time"
)

// AttemptOutcome classifies how one request/response cycle ended.
type AttemptOutcome string

const (
	AttemptSuccess           AttemptOutcome = "success"
	AttemptValidationFailure AttemptOutcome = "validation_failure"
	AttemptParseFailure      AttemptOutcome = "parse_failure"
	AttemptProviderError     AttemptOutcome = "provider_error"
)

// Attempt records one request/response cycle within a run. Entries are
// immutable once appended to the attempt log.
type Attempt struct {
	// Ordinal is the 1-based attempt number; ordinals are contiguous.
	Ordinal int

	// Prompt is the exact text sent to the provider.
	Prompt string

	// RawResponse is the provider's unprocessed reply (empty on
	// provider errors).
	RawResponse string

	// Outcome classifies the cycle.
	Outcome AttemptOutcome

	// StartedAt is when the attempt was issued.
	StartedAt time.Time

	// Duration covers send through validation.
	Duration time.Duration
}

// RunResult is the terminal outcome of a run. Exactly one of Value
// (with OK true) or Err (with OK false) is meaningful.
type RunResult struct {
	// OK reports whether a conforming value was obtained within the
	// attempt budget.
	OK bool

	// Value is the decoded conforming value (map[string]any, []any, or a
	// JSON scalar). Use [DecodeValue] for typed access.
	Value any

	// Err carries the kind-tagged failure when OK is false.
	Err *RunError

	// Attempts is the ordered attempt log for the run.
	Attempts []Attempt

	// Session echoes the handle used, so a follow-up run can continue
	// the same conversation.
	Session SessionHandle

	// ExecutionTime is the wall-clock duration of the whole run.
	ExecutionTime time.Duration
}

// AttemptCount returns the number of attempts issued.
func (r *RunResult) AttemptCount() int {
	return len(r.Attempts)
}

// DecodeValue converts a successful result's value into T via a JSON
// round-trip. Returns an error when the run failed or the value does not
// fit T.
func DecodeValue[T any](r *RunResult) (T, error) {
	var out T
	if r == nil || !r.OK {
		return out, fmt.Errorf("persuader: no value to decode from an unsuccessful run")
	}
	data, err := json.Marshal(r.Value)
	if err != nil {
		return out, fmt.Errorf("persuader: failed to serialize value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("persuader: value does not fit %T: %w", out, err)
	}
	return out, nil
}

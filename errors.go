package persuader

import (
	"errors"
	"fmt"

	"github.com/conorluddy/persuader/format"
	"github.com/conorluddy/persuader/schema"
)

// ErrNilSchema is returned by Run when the request carries no schema.
var ErrNilSchema = errors.New("persuader: request schema is nil")

// ErrNilSession is returned by Run when the pipeline has neither a
// provider nor a session capability to send with.
var ErrNilSession = errors.New("persuader: no session capability configured")

// ErrorKind discriminates the failure modes a run can end with.
type ErrorKind string

const (
	// ErrorParse means the response was not structurally parseable.
	ErrorParse ErrorKind = "parse"

	// ErrorValidation means the response parsed but violated the schema.
	ErrorValidation ErrorKind = "validation"

	// ErrorProvider means the provider/transport failed.
	ErrorProvider ErrorKind = "provider"

	// ErrorCancelled means the run was cancelled externally.
	ErrorCancelled ErrorKind = "cancelled"

	// ErrorExhausted means the attempt budget was consumed without a
	// conforming response. The RunError's Detail carries the last
	// attempt's failure for diagnosis.
	ErrorExhausted ErrorKind = "exhausted"
)

// FailureDetail captures why a single attempt was rejected. It is the
// input to feedback synthesis and, on exhaustion, the diagnostic payload
// of the final error.
type FailureDetail struct {
	// Kind is ErrorParse, ErrorValidation, or ErrorProvider.
	Kind ErrorKind

	// Parse is set for parse failures.
	Parse *format.ParseError

	// Issues is set for validation failures, in schema declaration order.
	Issues []schema.Issue

	// ProviderErr is set for retryable provider failures.
	ProviderErr error

	// SchemaHint is the schema rendered for prompts, restated in parse
	// failure feedback.
	SchemaHint string
}

// RunError is the failure payload of a RunResult.
type RunError struct {
	// Kind tags the failure mode.
	Kind ErrorKind

	// Detail describes the last attempt's failure, when one exists.
	Detail *FailureDetail

	// Err is the underlying error, when one exists.
	Err error
}

func (e *RunError) Error() string {
	switch {
	case e.Kind == ErrorExhausted && e.Detail != nil && len(e.Detail.Issues) > 0:
		return fmt.Sprintf(
			"persuader: %s: no conforming response (%d outstanding violations)",
			e.Kind, len(e.Detail.Issues),
		)
	case e.Err != nil:
		return fmt.Sprintf("persuader: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("persuader: %s", e.Kind)
	}
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ProviderError wraps a provider-side failure and carries the provider's
// own retryability signal. The pipeline retries retryable failures
// (consuming an attempt) and stops immediately on fatal ones.
type ProviderError struct {
	// Provider names the capability that failed.
	Provider string

	// Retryable reports whether another attempt may succeed.
	Retryable bool

	// Err is the underlying transport/provider error.
	Err error
}

func (e *ProviderError) Error() string {
	mode := "fatal"
	if e.Retryable {
		mode = "retryable"
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, mode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RetryableProviderError wraps err as a transient provider failure.
func RetryableProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: true, Err: err}
}

// FatalProviderError wraps err as a terminal provider failure
// (authentication, invalid configuration, provider-reported dead session).
func FatalProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: false, Err: err}
}

// retryableProvider reports whether err allows another attempt.
// Unclassified errors default to retryable; providers opt out by
// wrapping with FatalProviderError.
func retryableProvider(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

package persuader

import (
	"context"
	"errors"
	"time"

	"github.com/conorluddy/persuader/format"
	"github.com/conorluddy/persuader/schema"
)

// DefaultMaxAttempts is the attempt budget used when the caller does not
// configure one.
const DefaultMaxAttempts = 3

// Request describes one run: what structure is required, what to
// analyze, and how to frame it.
type Request struct {
	// Schema is the compiled structural requirement. Required.
	Schema *schema.Schema

	// Input is the pre-serialized data to analyze. Optional.
	Input string

	// Context is free-form instruction text prepended to the prompt.
	Context string

	// Session continues an existing conversation when non-empty; the
	// handle is reused verbatim and never reinterpreted.
	Session SessionHandle
}

// Pipeline is the retry orchestrator. It is stateless across runs:
// independent runs may execute concurrently on one instance, each with
// its own session handle and attempt log.
//
// Construct with [New] and configure with the With methods before first
// use; a Pipeline must not be reconfigured while runs are in flight.
type Pipeline struct {
	provider    Provider
	session     Session
	synth       FeedbackSynthesizer
	hooks       *HookRegistry
	maxAttempts int
	retryDelay  time.Duration
}

// New creates a Pipeline backed by the given provider, with the default
// attempt budget, no inter-attempt delay, and the stock synthesizer.
func New(provider Provider) *Pipeline {
	p := &Pipeline{
		provider:    provider,
		synth:       DefaultSynthesizer{},
		hooks:       NewHookRegistry(),
		maxAttempts: DefaultMaxAttempts,
	}
	if provider != nil {
		p.session = NewProviderSession(provider)
	}
	return p
}

// WithMaxAttempts sets the attempt budget. Values below 1 are clamped
// to 1. Returns the pipeline for chaining.
func (p *Pipeline) WithMaxAttempts(n int) *Pipeline {
	if n < 1 {
		n = 1
	}
	p.maxAttempts = n
	return p
}

// WithRetryDelay sets an optional pause between a failed attempt and the
// next one, used to respect provider rate limits. The delay is
// cancellable via the run's context.
func (p *Pipeline) WithRetryDelay(d time.Duration) *Pipeline {
	p.retryDelay = d
	return p
}

// WithSynthesizer replaces the feedback synthesizer.
func (p *Pipeline) WithSynthesizer(s FeedbackSynthesizer) *Pipeline {
	if s != nil {
		p.synth = s
	}
	return p
}

// WithSession replaces the session contract. Use this to interpose
// custom continuity mechanics without writing a full Provider.
func (p *Pipeline) WithSession(s Session) *Pipeline {
	if s != nil {
		p.session = s
	}
	return p
}

// RegisterHook adds an observability hook. The value may implement any
// combination of the hook interfaces.
func (p *Pipeline) RegisterHook(hook any) *Pipeline {
	p.hooks.Register(hook)
	return p
}

// Run executes the retry loop for one request.
//
// The returned error is non-nil only for precondition violations (nil
// schema, no session capability). Every expected failure mode lands in
// RunResult.Err instead: parse and validation failures and retryable
// provider errors are absorbed into feedback until the attempt budget is
// exhausted; fatal provider errors and cancellation terminate the run
// immediately.
func (p *Pipeline) Run(ctx context.Context, req *Request) (*RunResult, error) {
	if req == nil || req.Schema == nil {
		return nil, ErrNilSchema
	}
	if p.session == nil {
		return nil, ErrNilSession
	}

	start := time.Now()
	res := &RunResult{Session: req.Session}
	handle := req.Session

	// Some providers need the session before any send.
	if handle == "" && p.provider != nil && p.provider.RequiresSession() {
		h, err := p.session.Ensure(ctx, "")
		if err != nil {
			return p.finish(ctx, res, start, handle, sendFailureError(ctx, err)), nil
		}
		handle = h
	}

	schemaHint := req.Schema.Describe()
	feedback := ""
	var lastDetail *FailureDetail

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		// Cancellation raised between attempts must stop the run before
		// any further send, even with no retry delay configured.
		if err := ctx.Err(); err != nil {
			res.Err = &RunError{Kind: ErrorCancelled, Err: err}
			return p.finish(ctx, res, start, handle, nil), nil
		}

		// The optional delay sits strictly between a failed attempt and
		// the next one, and is cancellable.
		if attempt > 1 && p.retryDelay > 0 {
			if err := sleep(ctx, p.retryDelay); err != nil {
				res.Err = &RunError{Kind: ErrorCancelled, Err: err}
				return p.finish(ctx, res, start, handle, nil), nil
			}
		}

		if handle == "" {
			h, err := p.session.Ensure(ctx, "")
			if err != nil {
				return p.finish(ctx, res, start, handle, sendFailureError(ctx, err)), nil
			}
			handle = h
		}

		prompt := buildPrompt(req, schemaHint, feedback)
		p.hooks.fireBeforeAttempt(ctx, BeforeAttemptEvent{
			Ordinal:     attempt,
			MaxAttempts: p.maxAttempts,
			Prompt:      prompt,
			Session:     handle,
		})

		started := time.Now()
		raw, err := p.session.Send(ctx, handle, prompt)
		record := Attempt{
			Ordinal:   attempt,
			Prompt:    prompt,
			StartedAt: started,
		}

		if err != nil {
			record.Outcome = AttemptProviderError
			record.Duration = time.Since(started)
			res.Attempts = append(res.Attempts, record)

			if cancelErr := cancellation(ctx, err); cancelErr != nil {
				p.hooks.fireAfterAttempt(ctx, AfterAttemptEvent{Attempt: record})
				res.Err = &RunError{Kind: ErrorCancelled, Err: cancelErr}
				return p.finish(ctx, res, start, handle, nil), nil
			}
			if !retryableProvider(err) {
				p.hooks.fireAfterAttempt(ctx, AfterAttemptEvent{Attempt: record})
				res.Err = &RunError{Kind: ErrorProvider, Err: err}
				return p.finish(ctx, res, start, handle, nil), nil
			}

			// Transient failure: consume the attempt, keep the session
			// handle and any pending feedback, and try again.
			lastDetail = &FailureDetail{
				Kind:        ErrorProvider,
				ProviderErr: err,
				SchemaHint:  schemaHint,
			}
			p.hooks.fireAfterAttempt(ctx, AfterAttemptEvent{Attempt: record, Detail: lastDetail})
			continue
		}

		record.RawResponse = raw
		value, detail := validateResponse(req.Schema, raw, schemaHint)
		record.Duration = time.Since(started)

		if detail == nil {
			record.Outcome = AttemptSuccess
			res.Attempts = append(res.Attempts, record)
			p.hooks.fireAfterAttempt(ctx, AfterAttemptEvent{Attempt: record})

			res.OK = true
			res.Value = value
			return p.finish(ctx, res, start, handle, nil), nil
		}

		record.Outcome = AttemptValidationFailure
		if detail.Kind == ErrorParse {
			record.Outcome = AttemptParseFailure
		}
		res.Attempts = append(res.Attempts, record)
		lastDetail = detail
		p.hooks.fireAfterAttempt(ctx, AfterAttemptEvent{Attempt: record, Detail: detail})

		if attempt < p.maxAttempts {
			feedback = p.synth.Synthesize(detail, attempt, p.maxAttempts)
			p.hooks.fireFeedback(ctx, FeedbackEvent{Ordinal: attempt, Feedback: feedback})
		}
	}

	res.Err = &RunError{Kind: ErrorExhausted, Detail: lastDetail}
	if lastDetail != nil && lastDetail.ProviderErr != nil {
		res.Err.Err = lastDetail.ProviderErr
	}
	return p.finish(ctx, res, start, handle, nil), nil
}

// validateResponse decodes and checks one raw response. A nil detail
// means the value conforms.
func validateResponse(s *schema.Schema, raw, hint string) (any, *FailureDetail) {
	value, perr := format.Decode(raw)
	if perr != nil {
		return nil, &FailureDetail{Kind: ErrorParse, Parse: perr, SchemaHint: hint}
	}
	issues := s.Check(value)
	if len(issues) > 0 {
		return nil, &FailureDetail{Kind: ErrorValidation, Issues: issues, SchemaHint: hint}
	}
	return value, nil
}

// finish stamps the result, applies a pending terminal error, and fires
// the run-end hook. It always returns res.
func (p *Pipeline) finish(
	ctx context.Context,
	res *RunResult,
	start time.Time,
	handle SessionHandle,
	terminal *RunError,
) *RunResult {
	if terminal != nil {
		res.Err = terminal
	}
	if handle != "" {
		res.Session = handle
	}
	res.ExecutionTime = time.Since(start)
	p.hooks.fireRunEnd(ctx, RunEndEvent{Result: res})
	return res
}

// sendFailureError classifies a session establishment failure.
func sendFailureError(ctx context.Context, err error) *RunError {
	if cancelErr := cancellation(ctx, err); cancelErr != nil {
		return &RunError{Kind: ErrorCancelled, Err: cancelErr}
	}
	return &RunError{Kind: ErrorProvider, Err: err}
}

// cancellation returns the cancellation cause when err (or the context)
// reflects external cancellation, nil otherwise.
func cancellation(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package persuader

import "context"

// -----------------------------------------------------------------------------
// Hook Interfaces
// -----------------------------------------------------------------------------
//
// Hooks observe the retry loop without participating in it. Implement
// any combination of the interfaces below and register the value with
// Pipeline.RegisterHook; it only receives events for the interfaces it
// implements. Hooks are called in registration order and must not
// panic; they cannot alter the run.

// BeforeAttemptHook is notified before each attempt's prompt is sent.
type BeforeAttemptHook interface {
	OnBeforeAttempt(ctx context.Context, event BeforeAttemptEvent)
}

// AfterAttemptHook is notified after each attempt's response has been
// validated (or its send has failed).
type AfterAttemptHook interface {
	OnAfterAttempt(ctx context.Context, event AfterAttemptEvent)
}

// FeedbackHook is notified when corrective feedback has been synthesized
// for the next attempt.
type FeedbackHook interface {
	OnFeedback(ctx context.Context, event FeedbackEvent)
}

// RunEndHook is notified once when a run reaches a terminal state.
type RunEndHook interface {
	OnRunEnd(ctx context.Context, event RunEndEvent)
}

// -----------------------------------------------------------------------------
// Hook Events
// -----------------------------------------------------------------------------

// BeforeAttemptEvent is emitted before a prompt is sent.
type BeforeAttemptEvent struct {
	// Ordinal is the 1-based attempt number.
	Ordinal int

	// MaxAttempts is the run's attempt budget.
	MaxAttempts int

	// Prompt is the full outbound text.
	Prompt string

	// Session is the handle the attempt will use (may be empty when the
	// session is created lazily on this send).
	Session SessionHandle
}

// AfterAttemptEvent is emitted after an attempt completes.
type AfterAttemptEvent struct {
	// Attempt is the recorded attempt.
	Attempt Attempt

	// Detail describes the failure; nil on success.
	Detail *FailureDetail
}

// FeedbackEvent is emitted when feedback for the next attempt exists.
type FeedbackEvent struct {
	// Ordinal is the failed attempt the feedback responds to.
	Ordinal int

	// Feedback is the synthesized corrective message.
	Feedback string
}

// RunEndEvent is emitted once per run.
type RunEndEvent struct {
	// Result is the terminal run result.
	Result *RunResult
}

// -----------------------------------------------------------------------------
// Hook Registry
// -----------------------------------------------------------------------------

// HookRegistry stores registered hooks and dispatches events to those
// implementing the relevant interface.
type HookRegistry struct {
	beforeAttempt []BeforeAttemptHook
	afterAttempt  []AfterAttemptHook
	feedback      []FeedbackHook
	runEnd        []RunEndHook
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// Register adds a hook. The value may implement any combination of the
// hook interfaces; unrecognized values are ignored.
func (r *HookRegistry) Register(hook any) *HookRegistry {
	if h, ok := hook.(BeforeAttemptHook); ok {
		r.beforeAttempt = append(r.beforeAttempt, h)
	}
	if h, ok := hook.(AfterAttemptHook); ok {
		r.afterAttempt = append(r.afterAttempt, h)
	}
	if h, ok := hook.(FeedbackHook); ok {
		r.feedback = append(r.feedback, h)
	}
	if h, ok := hook.(RunEndHook); ok {
		r.runEnd = append(r.runEnd, h)
	}
	return r
}

func (r *HookRegistry) fireBeforeAttempt(ctx context.Context, event BeforeAttemptEvent) {
	if r == nil {
		return
	}
	for _, h := range r.beforeAttempt {
		h.OnBeforeAttempt(ctx, event)
	}
}

func (r *HookRegistry) fireAfterAttempt(ctx context.Context, event AfterAttemptEvent) {
	if r == nil {
		return
	}
	for _, h := range r.afterAttempt {
		h.OnAfterAttempt(ctx, event)
	}
}

func (r *HookRegistry) fireFeedback(ctx context.Context, event FeedbackEvent) {
	if r == nil {
		return
	}
	for _, h := range r.feedback {
		h.OnFeedback(ctx, event)
	}
}

func (r *HookRegistry) fireRunEnd(ctx context.Context, event RunEndEvent) {
	if r == nil {
		return
	}
	for _, h := range r.runEnd {
		h.OnRunEnd(ctx, event)
	}
}

package persuader_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorluddy/persuader"
	"github.com/conorluddy/persuader/providers"
	"github.com/conorluddy/persuader/schema"
)

func nameSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(schema.Object(
		schema.String("name", "The person's name.").MinLength(1).Required(),
	))
	require.NoError(t, err)
	return s
}

func scoreSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(schema.Object(
		schema.Integer("score", "Quality score.").Min(1).Max(10).Required(),
	))
	require.NoError(t, err)
	return s
}

// recorderHook captures every event fired during a run.
type recorderHook struct {
	mu       sync.Mutex
	before   []persuader.BeforeAttemptEvent
	after    []persuader.AfterAttemptEvent
	feedback []persuader.FeedbackEvent
	runEnds  []persuader.RunEndEvent
}

func (h *recorderHook) OnBeforeAttempt(_ context.Context, e persuader.BeforeAttemptEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.before = append(h.before, e)
}

func (h *recorderHook) OnAfterAttempt(_ context.Context, e persuader.AfterAttemptEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after = append(h.after, e)
}

func (h *recorderHook) OnFeedback(_ context.Context, e persuader.FeedbackEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedback = append(h.feedback, e)
}

func (h *recorderHook) OnRunEnd(_ context.Context, e persuader.RunEndEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runEnds = append(h.runEnds, e)
}

func TestRun_SucceedsOnFirstAttempt(t *testing.T) {
	provider := providers.NewScripted().AddResponse(`{"name": "Ann"}`)
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
		Input:  "Ann is a gardener.",
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Nil(t, result.Err)
	assert.Equal(t, map[string]any{"name": "Ann"}, result.Value)
	require.Equal(t, 1, result.AttemptCount())
	assert.Equal(t, persuader.AttemptSuccess, result.Attempts[0].Outcome)
	assert.Equal(t, 1, provider.CallCount())

	// Attempt 1 carries no corrective feedback.
	assert.NotContains(t, provider.Prompts[0], "previous response")
	assert.Contains(t, provider.Prompts[0], "Ann is a gardener.")
}

func TestRun_RecoversFromParseFailure(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse("not json").
		AddResponse(`{"name": "Ann"}`)
	pipeline := persuader.New(provider).WithMaxAttempts(2)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	require.Equal(t, 2, result.AttemptCount())
	assert.Equal(t, persuader.AttemptParseFailure, result.Attempts[0].Outcome)
	assert.Equal(t, persuader.AttemptSuccess, result.Attempts[1].Outcome)

	name, err := persuader.DecodeValue[struct {
		Name string `json:"name"`
	}](result)
	require.NoError(t, err)
	assert.Equal(t, "Ann", name.Name)

	// The retry prompt restates the parse failure and the schema.
	assert.Contains(t, provider.Prompts[1], "could not be parsed as JSON")
	assert.Contains(t, provider.Prompts[1], `"name"`)
}

func TestRun_ExhaustsAfterRepeatedViolations(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse(`{"score": 15}`).
		AddResponse(`{"score": 15}`).
		AddResponse(`{"score": 15}`)
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: scoreSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Nil(t, result.Value)
	assert.Equal(t, 3, result.AttemptCount())
	assert.Equal(t, 3, provider.CallCount())

	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorExhausted, result.Err.Kind)
	require.NotNil(t, result.Err.Detail)
	require.Len(t, result.Err.Detail.Issues, 1)
	issue := result.Err.Detail.Issues[0]
	assert.Equal(t, "score", issue.PathString())
	assert.Equal(t, "15 is greater than the maximum of 10", issue.Message)
}

func TestRun_SuccessAtAttemptKStopsSending(t *testing.T) {
	type input struct {
		script      func() *providers.Scripted
		maxAttempts int
	}

	type expected struct {
		attempts int
		sends    int
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "success at attempt 2 of 5",
			input: input{
				script: func() *providers.Scripted {
					return providers.NewScripted().
						AddResponse(`{"score": 0}`).
						AddResponse(`{"score": 7}`).
						AddResponse(`{"score": 7}`)
				},
				maxAttempts: 5,
			},
			expected: expected{attempts: 2, sends: 2},
		},
		{
			name: "success at final attempt",
			input: input{
				script: func() *providers.Scripted {
					return providers.NewScripted().
						AddResponse(`{"score": 0}`).
						AddResponse(`{"score": 99}`).
						AddResponse(`{"score": 3}`)
				},
				maxAttempts: 3,
			},
			expected: expected{attempts: 3, sends: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := tt.input.script()
			pipeline := persuader.New(provider).WithMaxAttempts(tt.input.maxAttempts)

			result, err := pipeline.Run(context.Background(), &persuader.Request{
				Schema: scoreSchema(t),
			})
			require.NoError(t, err)

			assert.True(t, result.OK)
			assert.Equal(t, tt.expected.attempts, result.AttemptCount())
			assert.Equal(t, tt.expected.sends, provider.CallCount())
		})
	}
}

func TestRun_FeedbackOnlyOnRetries(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse(`{"score": 0}`).
		AddResponse(`{"score": 0}`).
		AddResponse(`{"score": 0}`)
	hook := &recorderHook{}
	pipeline := persuader.New(provider).RegisterHook(hook)

	_, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: scoreSchema(t),
	})
	require.NoError(t, err)

	require.Len(t, provider.Prompts, 3)

	// Attempt 1: bare prompt. Attempts 2 and 3: feedback suffix.
	assert.NotContains(t, provider.Prompts[0], "Fix the following problems")
	assert.Contains(t, provider.Prompts[1], "Fix the following problems")
	assert.Contains(t, provider.Prompts[1], "score: expected integer between 1 and 10")

	// Attempt 3 consumes the final-attempt warning synthesized after
	// attempt 2 failed.
	assert.Contains(t, provider.Prompts[2], "FINAL ATTEMPT")
	assert.NotContains(t, provider.Prompts[1], "FINAL ATTEMPT")

	// No feedback is synthesized after the last attempt fails.
	require.Len(t, hook.feedback, 2)
	assert.Equal(t, 1, hook.feedback[0].Ordinal)
	assert.Equal(t, 2, hook.feedback[1].Ordinal)
}

func TestRun_SharedPromptPrefixAcrossAttempts(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse("nope").
		AddResponse(`{"name": "Bo"}`)
	pipeline := persuader.New(provider).WithMaxAttempts(2)

	_, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema:  nameSchema(t),
		Context: "You are a data extractor.",
		Input:   "Bo fixes bikes.",
	})
	require.NoError(t, err)

	require.Len(t, provider.Prompts, 2)
	assert.True(t, strings.HasPrefix(provider.Prompts[1], provider.Prompts[0]),
		"retry prompt must extend the original prompt with a feedback suffix")
}

func TestRun_CallerSessionReusedVerbatim(t *testing.T) {
	provider := providers.NewScripted().AddResponse(`{"name": "Ann"}`)
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema:  nameSchema(t),
		Session: "caller-chose-this",
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, persuader.SessionHandle("caller-chose-this"), result.Session)
	require.Len(t, provider.Sessions, 1)
	assert.Equal(t, persuader.SessionHandle("caller-chose-this"), provider.Sessions[0])
	assert.Equal(t, 0, provider.CreatedSessions(),
		"an existing handle must never trigger session creation")
}

func TestRun_EagerSessionWhenProviderRequiresIt(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse(`{"name": "Ann"}`).
		WithRequiresSession()
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 1, provider.CreatedSessions())
	assert.Equal(t, persuader.SessionHandle("scripted-session-1"), result.Session)
	require.Len(t, provider.Sessions, 1)
	assert.Equal(t, persuader.SessionHandle("scripted-session-1"), provider.Sessions[0])
}

func TestRun_SessionSurvivesRetries(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse("not json").
		AddError(persuader.RetryableProviderError("scripted", errors.New("overloaded"))).
		AddResponse(`{"name": "Ann"}`).
		WithRequiresSession()
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 1, provider.CreatedSessions())
	require.Len(t, provider.Sessions, 3)
	for _, session := range provider.Sessions {
		assert.Equal(t, persuader.SessionHandle("scripted-session-1"), session)
	}
}

func TestRun_RetryableProviderErrorConsumesAttempt(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse(`{"score": 0}`).
		AddError(persuader.RetryableProviderError("scripted", errors.New("429"))).
		AddResponse(`{"score": 5}`)
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: scoreSchema(t),
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	require.Equal(t, 3, result.AttemptCount())
	assert.Equal(t, persuader.AttemptValidationFailure, result.Attempts[0].Outcome)
	assert.Equal(t, persuader.AttemptProviderError, result.Attempts[1].Outcome)
	assert.Equal(t, persuader.AttemptSuccess, result.Attempts[2].Outcome)

	// The attempt after the provider error resends the pending
	// feedback; the transport failure does not erase it.
	assert.Contains(t, provider.Prompts[2], "Fix the following problems")
	assert.Equal(t, provider.Prompts[1], provider.Prompts[2])
}

func TestRun_ExhaustionByProviderErrors(t *testing.T) {
	transient := errors.New("connection reset")
	provider := providers.NewScripted().
		AddError(persuader.RetryableProviderError("scripted", transient)).
		AddError(persuader.RetryableProviderError("scripted", transient))
	pipeline := persuader.New(provider).WithMaxAttempts(2)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 2, result.AttemptCount())
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorExhausted, result.Err.Kind)
	assert.ErrorIs(t, result.Err, transient)
	require.NotNil(t, result.Err.Detail)
	assert.Equal(t, persuader.ErrorProvider, result.Err.Detail.Kind)
}

func TestRun_FatalProviderErrorStopsImmediately(t *testing.T) {
	fatal := persuader.FatalProviderError("scripted", errors.New("401 unauthorized"))
	provider := providers.NewScripted().
		AddError(fatal).
		AddResponse(`{"name": "Ann"}`)
	pipeline := persuader.New(provider)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 1, result.AttemptCount())
	assert.Equal(t, 1, provider.CallCount())
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorProvider, result.Err.Kind)

	var pe *persuader.ProviderError
	require.True(t, errors.As(result.Err, &pe))
	assert.False(t, pe.Retryable)
}

func TestRun_CancellationDuringSend(t *testing.T) {
	provider := providers.NewScripted().AddHang()
	pipeline := persuader.New(provider)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := pipeline.Run(ctx, &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 1, result.AttemptCount())
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorCancelled, result.Err.Kind)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, provider.CallCount(), "no send after cancellation")
}

// cancellingHook cancels the run's context after a chosen attempt, the
// way a caller-side watchdog would between attempts.
type cancellingHook struct {
	afterOrdinal int
	cancel       context.CancelFunc
}

func (h *cancellingHook) OnAfterAttempt(_ context.Context, e persuader.AfterAttemptEvent) {
	if e.Attempt.Ordinal == h.afterOrdinal {
		h.cancel()
	}
}

func TestRun_CancellationBetweenAttempts(t *testing.T) {
	// No retry delay: the orchestrator itself has to notice the
	// cancellation before issuing attempt 2, which would otherwise
	// succeed.
	provider := providers.NewScripted().
		AddResponse("not json").
		AddResponse(`{"name": "Ann"}`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline := persuader.New(provider).
		WithMaxAttempts(2).
		RegisterHook(&cancellingHook{afterOrdinal: 1, cancel: cancel})

	result, err := pipeline.Run(ctx, &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Nil(t, result.Value)
	assert.Equal(t, 1, provider.CallCount(), "no send after cancellation")
	assert.Equal(t, 1, result.AttemptCount())
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorCancelled, result.Err.Kind)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestRun_CancellationDuringRetryDelay(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse("not json").
		AddResponse(`{"name": "Ann"}`)
	pipeline := persuader.New(provider).
		WithMaxAttempts(2).
		WithRetryDelay(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	begin := time.Now()
	result, err := pipeline.Run(ctx, &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(begin), time.Second,
		"cancellation must interrupt the inter-attempt delay")
	assert.False(t, result.OK)
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorCancelled, result.Err.Kind)
	assert.Equal(t, 1, provider.CallCount(), "attempt 2 never starts")
}

func TestRun_PreconditionErrors(t *testing.T) {
	t.Run("nil schema", func(t *testing.T) {
		pipeline := persuader.New(providers.NewScripted())
		result, err := pipeline.Run(context.Background(), &persuader.Request{})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, persuader.ErrNilSchema)
	})

	t.Run("nil request", func(t *testing.T) {
		pipeline := persuader.New(providers.NewScripted())
		result, err := pipeline.Run(context.Background(), nil)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, persuader.ErrNilSchema)
	})

	t.Run("no session capability", func(t *testing.T) {
		pipeline := persuader.New(nil)
		result, err := pipeline.Run(context.Background(), &persuader.Request{
			Schema: nameSchema(t),
		})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, persuader.ErrNilSession)
	})
}

func TestRun_MaxAttemptsClampedToOne(t *testing.T) {
	provider := providers.NewScripted().AddResponse("not json")
	pipeline := persuader.New(provider).WithMaxAttempts(0)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: nameSchema(t),
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 1, result.AttemptCount())
	require.NotNil(t, result.Err)
	assert.Equal(t, persuader.ErrorExhausted, result.Err.Kind)
}

func TestRun_HookEventOrdering(t *testing.T) {
	provider := providers.NewScripted().
		AddResponse(`{"score": 0}`).
		AddResponse(`{"score": 5}`)
	hook := &recorderHook{}
	pipeline := persuader.New(provider).RegisterHook(hook)

	result, err := pipeline.Run(context.Background(), &persuader.Request{
		Schema: scoreSchema(t),
	})
	require.NoError(t, err)
	assert.True(t, result.OK)

	require.Len(t, hook.before, 2)
	assert.Equal(t, 1, hook.before[0].Ordinal)
	assert.Equal(t, 2, hook.before[1].Ordinal)
	assert.Equal(t, persuader.DefaultMaxAttempts, hook.before[0].MaxAttempts)

	require.Len(t, hook.after, 2)
	require.NotNil(t, hook.after[0].Detail)
	assert.Equal(t, persuader.ErrorValidation, hook.after[0].Detail.Kind)
	assert.Nil(t, hook.after[1].Detail)

	require.Len(t, hook.runEnds, 1)
	assert.Same(t, result, hook.runEnds[0].Result)
}

func TestRun_ConcurrentRunsAreIsolated(t *testing.T) {
	const runs = 8

	var wg sync.WaitGroup
	results := make([]*persuader.RunResult, runs)
	for i := 0; i < runs; i++ {
		provider := providers.NewScripted().AddResponse(
			fmt.Sprintf(`{"name": "person-%d"}`, i))
		pipeline := persuader.New(provider)

		wg.Add(1)
		go func(i int, p *persuader.Pipeline) {
			defer wg.Done()
			result, err := p.Run(context.Background(), &persuader.Request{
				Schema: nameSchema(t),
			})
			assert.NoError(t, err)
			results[i] = result
		}(i, pipeline)
	}
	wg.Wait()

	for i, result := range results {
		require.NotNil(t, result)
		assert.True(t, result.OK)
		assert.Equal(t, map[string]any{"name": fmt.Sprintf("person-%d", i)}, result.Value)
	}
}

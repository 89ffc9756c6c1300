package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorluddy/persuader"
)

func TestScripted_ReplaysQueueInOrder(t *testing.T) {
	transient := persuader.RetryableProviderError("scripted", errors.New("flaky"))
	provider := NewScripted().
		AddResponse("first").
		AddError(transient).
		AddResponse("third")
	ctx := context.Background()

	raw, err := provider.Send(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "first", raw)

	_, err = provider.Send(ctx, "s1", "p2")
	assert.ErrorIs(t, err, transient)

	raw, err = provider.Send(ctx, "s1", "p3")
	require.NoError(t, err)
	assert.Equal(t, "third", raw)

	assert.Equal(t, 3, provider.CallCount())
	assert.Equal(t, []string{"p1", "p2", "p3"}, provider.Prompts)
	assert.Equal(t, []persuader.SessionHandle{"s1", "s1", "s1"}, provider.Sessions)
}

func TestScripted_SendBeyondScriptIsFatal(t *testing.T) {
	provider := NewScripted().AddResponse("only one")
	ctx := context.Background()

	_, err := provider.Send(ctx, "s", "a")
	require.NoError(t, err)

	_, err = provider.Send(ctx, "s", "b")
	require.Error(t, err)

	var pe *persuader.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.Retryable)
}

func TestScripted_HangUnblocksOnCancel(t *testing.T) {
	provider := NewScripted().AddHang()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := provider.Send(ctx, "s", "p")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hang did not unblock on cancellation")
	}
}

func TestScripted_SequentialSessionHandles(t *testing.T) {
	provider := NewScripted()
	ctx := context.Background()

	h1, err := provider.CreateSession(ctx)
	require.NoError(t, err)
	h2, err := provider.CreateSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, persuader.SessionHandle("scripted-session-1"), h1)
	assert.Equal(t, persuader.SessionHandle("scripted-session-2"), h2)
	assert.Equal(t, 2, provider.CreatedSessions())
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/conorluddy/persuader"
)

// errHang is the queue marker for a send that blocks until cancellation.
var errHang = errors.New("providers: scripted hang")

// Scripted replays a fixed sequence of responses and errors, in queue
// order. Use it to drive the pipeline deterministically in tests and
// offline demos.
//
//	provider := providers.NewScripted().
//	    AddResponse("not json").
//	    AddResponse(`{"name":"Ann"}`)
type Scripted struct {
	mu        sync.Mutex
	responses []string
	errors    []error
	calls     int
	created   int

	// Prompts records every prompt passed to Send, in order.
	Prompts []string

	// Sessions records the handle used by each Send, in order.
	Sessions []persuader.SessionHandle

	requiresSession bool
}

// NewScripted creates an empty scripted provider.
func NewScripted() *Scripted {
	return &Scripted{}
}

// AddResponse queues a successful response.
func (s *Scripted) AddResponse(text string) *Scripted {
	s.responses = append(s.responses, text)
	s.errors = append(s.errors, nil)
	return s
}

// AddError queues a send failure. Wrap with
// persuader.FatalProviderError / RetryableProviderError to control how
// the pipeline reacts.
func (s *Scripted) AddError(err error) *Scripted {
	s.responses = append(s.responses, "")
	s.errors = append(s.errors, err)
	return s
}

// AddHang queues a send that blocks until the context is cancelled and
// then returns the context's error. Use it to test cancellation of an
// in-flight send.
func (s *Scripted) AddHang() *Scripted {
	s.responses = append(s.responses, "")
	s.errors = append(s.errors, errHang)
	return s
}

// WithRequiresSession makes the provider demand eager session creation.
func (s *Scripted) WithRequiresSession() *Scripted {
	s.requiresSession = true
	return s
}

// CallCount returns how many times Send has been invoked.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CreatedSessions returns how many sessions CreateSession has opened.
func (s *Scripted) CreatedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Name implements persuader.Provider.
func (s *Scripted) Name() string {
	return "scripted"
}

// CreateSession implements persuader.Provider. Handles are sequential
// for easy assertions.
func (s *Scripted) CreateSession(_ context.Context) (persuader.SessionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return persuader.SessionHandle(fmt.Sprintf("scripted-session-%d", s.created)), nil
}

// Send implements persuader.Provider, replaying the queued script.
// Calls beyond the script fail fatally: a test that over-sends is
// broken and should not loop.
func (s *Scripted) Send(
	ctx context.Context,
	session persuader.SessionHandle,
	prompt string,
) (string, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.Prompts = append(s.Prompts, prompt)
	s.Sessions = append(s.Sessions, session)
	s.mu.Unlock()

	if idx >= len(s.responses) {
		return "", persuader.FatalProviderError(s.Name(),
			fmt.Errorf("send %d beyond scripted responses", idx+1))
	}

	if err := s.errors[idx]; err != nil {
		if errors.Is(err, errHang) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "", err
	}
	return s.responses[idx], nil
}

// Health implements persuader.Provider.
func (s *Scripted) Health(_ context.Context) persuader.HealthStatus {
	return persuader.HealthStatus{Ready: true}
}

// RequiresSession implements persuader.Provider.
func (s *Scripted) RequiresSession() bool {
	return s.requiresSession
}

// Compile-time check that Scripted implements persuader.Provider.
var _ persuader.Provider = (*Scripted)(nil)

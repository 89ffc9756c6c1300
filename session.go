package persuader

import "context"

// SessionHandle names a provider-held conversation. It is an opaque
// pass-through identifier: the pipeline never interprets its contents,
// and its lifetime and meaning belong to the provider. The zero value
// means "no session yet".
type SessionHandle string

// Session is the continuity contract the pipeline depends on. Two Send
// calls with the same handle must be observed by the provider as one
// logical conversation, with prior turns visible.
//
// This is the seam that keeps the retry loop provider-agnostic:
// CLI-subprocess sessions, hosted-API threads, and client-side history
// all hide behind the same two methods.
type Session interface {
	// Ensure resolves the handle for this run. When existing is
	// non-empty it is returned unchanged (creation is idempotent);
	// otherwise a new conversation is opened.
	Ensure(ctx context.Context, existing SessionHandle) (SessionHandle, error)

	// Send continues the conversation named by handle with text and
	// returns the raw response.
	Send(ctx context.Context, handle SessionHandle, text string) (string, error)
}

// NewProviderSession adapts a Provider to the Session contract.
func NewProviderSession(p Provider) Session {
	return &providerSession{provider: p}
}

type providerSession struct {
	provider Provider
}

func (s *providerSession) Ensure(ctx context.Context, existing SessionHandle) (SessionHandle, error) {
	if existing != "" {
		return existing, nil
	}
	return s.provider.CreateSession(ctx)
}

func (s *providerSession) Send(ctx context.Context, handle SessionHandle, text string) (string, error) {
	return s.provider.Send(ctx, handle, text)
}

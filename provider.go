package persuader

import "context"

// Provider is the capability surface a model adapter must implement.
// The pipeline never touches provider internals; it sees sessions as
// opaque handles and errors as retryable or fatal via [ProviderError].
type Provider interface {
	// Name identifies the provider in errors and hook events.
	Name() string

	// Send submits text on the conversation named by session and returns
	// the raw response text. Implementations must honor ctx cancellation
	// and classify failures with RetryableProviderError or
	// FatalProviderError.
	Send(ctx context.Context, session SessionHandle, prompt string) (string, error)

	// CreateSession opens a new provider-held conversation and returns
	// its handle.
	CreateSession(ctx context.Context) (SessionHandle, error)

	// Health reports whether the provider is ready to serve requests.
	Health(ctx context.Context) HealthStatus

	// RequiresSession reports whether a session must exist before any
	// Send. When true the pipeline creates the session eagerly at the
	// start of a run; when false, lazily before the first send.
	RequiresSession() bool
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	// Ready reports whether the provider can serve requests.
	Ready bool

	// Detail explains a not-ready status.
	Detail string
}

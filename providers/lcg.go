// Package providers contains Provider implementations for the pipeline.
//
// LCG adapts any LangChainGo llms.Model (OpenAI, Anthropic, Ollama,
// etc.); Scripted replays canned responses for tests and offline demos.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/conorluddy/persuader"
)

// LCG implements persuader.Provider on top of a LangChainGo llms.Model.
//
// Chat-completion APIs are stateless, so continuity is kept client-side:
// each session handle maps to a message history, and every Send submits
// the whole history so the model observes one logical conversation.
//
// Example:
//
//	llm, _ := openai.New(openai.WithToken(apiKey))
//	provider := providers.NewLCG(llm).WithModelName("gpt-4o")
//	pipe := persuader.New(provider)
type LCG struct {
	model     llms.Model
	modelName string
	callOpts  []llms.CallOption

	// fatal classifies provider errors as terminal. Defaults to nil:
	// every transport error is treated as retryable.
	fatal func(error) bool

	mu       sync.Mutex
	sessions map[persuader.SessionHandle][]llms.MessageContent
}

// NewLCG creates an LCG provider wrapping the given model.
func NewLCG(model llms.Model) *LCG {
	return &LCG{
		model:    model,
		sessions: make(map[persuader.SessionHandle][]llms.MessageContent),
	}
}

// WithModelName sets the model name reported by Name and passed on each
// call. Returns the provider for chaining.
func (p *LCG) WithModelName(name string) *LCG {
	p.modelName = name
	p.callOpts = append(p.callOpts, llms.WithModel(name))
	return p
}

// WithCallOptions appends LangChainGo call options applied to every
// Send (temperature, max tokens, etc.).
func (p *LCG) WithCallOptions(opts ...llms.CallOption) *LCG {
	p.callOpts = append(p.callOpts, opts...)
	return p
}

// WithFatalClassifier installs a predicate that marks matching errors as
// terminal (e.g. authentication failures). Unmatched errors stay
// retryable.
func (p *LCG) WithFatalClassifier(fatal func(error) bool) *LCG {
	p.fatal = fatal
	return p
}

// Name implements persuader.Provider.
func (p *LCG) Name() string {
	if p.modelName != "" {
		return "langchaingo:" + p.modelName
	}
	return "langchaingo"
}

// CreateSession implements persuader.Provider. Handles are random UUIDs.
func (p *LCG) CreateSession(_ context.Context) (persuader.SessionHandle, error) {
	handle := persuader.SessionHandle(uuid.NewString())
	p.mu.Lock()
	p.sessions[handle] = nil
	p.mu.Unlock()
	return handle, nil
}

// Send implements persuader.Provider. A handle this provider has not
// seen before starts an empty history under that handle, so
// caller-supplied identifiers pass through untouched.
func (p *LCG) Send(
	ctx context.Context,
	session persuader.SessionHandle,
	prompt string,
) (string, error) {
	p.mu.Lock()
	history := append([]llms.MessageContent{}, p.sessions[session]...)
	p.mu.Unlock()

	messages := append(history, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	response, err := p.model.GenerateContent(ctx, messages, p.callOpts...)
	if err != nil {
		return "", p.classify(err)
	}
	if len(response.Choices) == 0 {
		return "", persuader.RetryableProviderError(p.Name(),
			errors.New("model returned no choices"))
	}

	content := response.Choices[0].Content

	p.mu.Lock()
	p.sessions[session] = append(messages, llms.TextParts(llms.ChatMessageTypeAI, content))
	p.mu.Unlock()

	return content, nil
}

// Health implements persuader.Provider.
func (p *LCG) Health(_ context.Context) persuader.HealthStatus {
	if p.model == nil {
		return persuader.HealthStatus{Detail: "no model configured"}
	}
	return persuader.HealthStatus{Ready: true}
}

// RequiresSession implements persuader.Provider. History is held
// client-side, so sessions can be created lazily.
func (p *LCG) RequiresSession() bool {
	return false
}

// History returns a copy of the conversation recorded under handle.
func (p *LCG) History(handle persuader.SessionHandle) []llms.MessageContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llms.MessageContent{}, p.sessions[handle]...)
}

func (p *LCG) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if p.fatal != nil && p.fatal(err) {
		return persuader.FatalProviderError(p.Name(), err)
	}
	return persuader.RetryableProviderError(p.Name(), fmt.Errorf("generate: %w", err))
}

// Compile-time check that LCG implements persuader.Provider.
var _ persuader.Provider = (*LCG)(nil)

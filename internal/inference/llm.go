package inference

import (
	"context"
	"errors"

	"github.com/MrWong99/glyphcmd/pkg/provider/llm"
)

type llmClient struct {
	provider     llm.Provider
	systemPrompt string
	temperature  float64
	maxTokens    int
	onUsage      func(backend string, u llm.Usage)
}

// LLMOption configures a client built by [FromLLM].
type LLMOption func(*llmClient)

// WithSystemPrompt sends s as the system prompt of every request.
func WithSystemPrompt(s string) LLMOption {
	return func(c *llmClient) { c.systemPrompt = s }
}

// WithTemperature sets the sampling temperature. Zero keeps the provider
// default.
func WithTemperature(t float64) LLMOption {
	return func(c *llmClient) { c.temperature = t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) LLMOption {
	return func(c *llmClient) { c.maxTokens = n }
}

// WithUsageHook registers fn to receive token usage of every successful
// call.
func WithUsageHook(fn func(backend string, u llm.Usage)) LLMOption {
	return func(c *llmClient) { c.onUsage = fn }
}

// FromLLM adapts an [llm.Provider] to [Client]. The prompt is sent as a
// single user message. Request.Model is ignored because providers are bound
// to one model at construction.
func FromLLM(p llm.Provider, opts ...LLMOption) Client {
	c := &llmClient{provider: p}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *llmClient) Name() string { return c.provider.Name() }

func (c *llmClient) Infer(ctx context.Context, req Request) (string, error) {
	creq := llm.UserPrompt(req.Prompt)
	creq.SystemPrompt = c.systemPrompt
	creq.Temperature = c.temperature
	creq.MaxTokens = c.maxTokens

	resp, err := c.provider.Complete(ctx, creq)
	if err != nil {
		return "", AsTransportError(c.Name(), err)
	}
	if resp == nil {
		return "", &TransportError{Backend: c.Name(), Err: errors.New("empty response")}
	}
	if c.onUsage != nil {
		c.onUsage(c.Name(), resp.Usage)
	}
	return resp.Content, nil
}

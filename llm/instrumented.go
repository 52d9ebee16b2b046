package llm

import (
	"context"
	"time"

	obs "github.com/KamdynS/property-crew/observability"
)

// InstrumentedClient wraps a Client with spans and metrics on every call.
type InstrumentedClient struct {
	inner Client
}

func NewInstrumentedClient(inner Client) *InstrumentedClient {
	return &InstrumentedClient{inner: inner}
}

func (c *InstrumentedClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	return c.observe(ctx, "llm.chat", func(ctx context.Context) (*Response, error) {
		return c.inner.Chat(ctx, req)
	})
}

func (c *InstrumentedClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return c.observe(ctx, "llm.completion", func(ctx context.Context) (*Response, error) {
		return c.inner.Completion(ctx, prompt)
	})
}

func (c *InstrumentedClient) observe(ctx context.Context, name string, call func(context.Context) (*Response, error)) (*Response, error) {
	span, ctx := obs.TracerImpl.StartSpan(ctx, name)
	defer span.End()
	labels := map[string]string{"provider": string(c.inner.Provider()), "model": c.inner.Model()}
	span.SetAttribute(obs.AttrProvider, labels["provider"])
	span.SetAttribute(obs.AttrModel, labels["model"])

	start := time.Now()
	resp, err := call(ctx)
	obs.MetricsImpl.IncrementRequests(labels)
	obs.MetricsImpl.RecordLatency(time.Since(start), labels)
	if err != nil {
		errType := string(ErrorTypeUnknown)
		if llmErr, ok := IsLLMError(err); ok {
			errType = string(llmErr.Type)
		}
		obs.MetricsImpl.RecordError(errType, labels)
		span.SetStatus(obs.StatusCodeError, err.Error())
		return nil, err
	}

	if resp.Usage != nil {
		span.SetAttribute(obs.AttrTokensInput, resp.Usage.InputTokens)
		span.SetAttribute(obs.AttrTokensOutput, resp.Usage.OutputTokens)
		obs.MetricsImpl.IncrementTokensUsed(resp.Usage.TotalTokens, labels)
	}
	span.SetAttribute(obs.AttrFinishReason, resp.FinishReason)
	span.SetStatus(obs.StatusCodeOk, "")
	return resp, nil
}

func (c *InstrumentedClient) Model() string      { return c.inner.Model() }
func (c *InstrumentedClient) Provider() Provider { return c.inner.Provider() }
func (c *InstrumentedClient) Validate() error    { return c.inner.Validate() }

var _ Client = (*InstrumentedClient)(nil)

package llm

import (
	"context"
	"fmt"
)

type fakeClient struct{}

func (f *fakeClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	return &Response{Content: "ok", Model: "test", Provider: ProviderOpenAI, Usage: &Usage{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}}, nil
}
func (f *fakeClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return &Response{Content: "ok", Model: "test", Provider: ProviderOpenAI}, nil
}
func (f *fakeClient) Model() string      { return "test" }
func (f *fakeClient) Provider() Provider { return ProviderOpenAI }
func (f *fakeClient) Validate() error    { return nil }

func ExampleInstrumentedClient() {
	c := NewInstrumentedClient(&fakeClient{})
	r, _ := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	fmt.Println(r.Content, r.Usage.TotalTokens)
	// Output:
	// ok 4
}

func ExampleUsage_Add() {
	total := &Usage{}
	total.Add(&Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	total.Add(&Usage{InputTokens: 2, OutputTokens: 1, TotalTokens: 3})
	total.Add(nil)
	fmt.Println(total.InputTokens, total.OutputTokens, total.TotalTokens)
	// Output:
	// 12 6 18
}

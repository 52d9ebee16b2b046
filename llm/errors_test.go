package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestLLMErrorText(t *testing.T) {
	plain := &LLMError{Provider: ProviderOpenAI, Message: "Rate limit exceeded"}
	if plain.Error() != "openai: Rate limit exceeded" {
		t.Errorf("unexpected text %q", plain.Error())
	}
	coded := &LLMError{Provider: ProviderGemini, Code: "bad_request", Message: "Invalid request"}
	if coded.Error() != "gemini [bad_request]: Invalid request" {
		t.Errorf("unexpected text %q", coded.Error())
	}
}

func TestNewLLMErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := NewLLMErrorWithCause(ProviderAnthropic, ErrorTypeConnectionError, "connect failed", cause)
	if err.Unwrap() != cause {
		t.Fatalf("cause not preserved")
	}
	if !err.IsRetryable() {
		t.Fatalf("connection errors should be retryable")
	}
}

func TestParseHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		want      ErrorType
		retryable bool
	}{
		{http.StatusBadRequest, "", ErrorTypeInvalidRequest, false},
		{http.StatusUnauthorized, "", ErrorTypeAuthentication, false},
		{http.StatusTooManyRequests, "", ErrorTypeRateLimit, true},
		{http.StatusBadGateway, "", ErrorTypeServerError, true},
		{http.StatusTeapot, "", ErrorTypeUnknown, false},
		{http.StatusBadRequest, "This model's maximum context length is 16385 tokens", ErrorTypeContextLength, false},
		{http.StatusForbidden, "You exceeded your current quota exceeded", ErrorTypeInsufficientQuota, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%s", tt.status, tt.want), func(t *testing.T) {
			err := ParseHTTPError(ProviderOpenAI, tt.status, tt.body)
			if err.Type != tt.want {
				t.Errorf("type = %s, want %s", err.Type, tt.want)
			}
			if err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", err.HTTPStatus, tt.status)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", err.Retryable, tt.retryable)
			}
		})
	}
}

func TestParseHTTPErrorTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", 300)
	err := ParseHTTPError(ProviderOpenAI, http.StatusTeapot, body)
	if !strings.HasSuffix(err.Message, "...") || len(err.Message) > 250 {
		t.Fatalf("body not truncated: %d chars", len(err.Message))
	}
}

func TestExtractSpecificError(t *testing.T) {
	tests := map[string]ErrorType{
		"Error: rate limit exceeded":               ErrorTypeRateLimit,
		"Content filtered by safety system":        ErrorTypeContentFilter,
		"The model 'invalid-model' does not exist": ErrorTypeInvalidModel,
	}
	for body, want := range tests {
		err := extractSpecificError(ProviderAnthropic, body)
		if err == nil || err.Type != want {
			t.Errorf("extractSpecificError(%q) = %v, want %s", body, err, want)
		}
	}
	if err := extractSpecificError(ProviderOpenAI, "Some random error message"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestErrorCheckers(t *testing.T) {
	wrapped := fmt.Errorf("chat: %w", NewLLMError(ProviderOpenAI, ErrorTypeRateLimit, "slow down"))
	if !IsRateLimitError(wrapped) || !IsRetryableError(wrapped) {
		t.Fatalf("wrapped rate limit not detected")
	}
	if IsAuthenticationError(wrapped) {
		t.Fatalf("rate limit misclassified as auth error")
	}
	auth := &LLMError{Type: ErrorTypeAuthentication}
	if !IsAuthenticationError(auth) || IsRetryableError(auth) {
		t.Fatalf("auth error misclassified")
	}
	if _, ok := IsLLMError(fmt.Errorf("plain")); ok {
		t.Fatalf("plain error reported as LLMError")
	}
}

func TestValidationErrors(t *testing.T) {
	fieldErr := &ValidationError{Field: "beds", Message: "must be >= 0"}
	if fieldErr.Error() != "validation error on field 'beds': must be >= 0" {
		t.Errorf("unexpected text %q", fieldErr.Error())
	}

	multi := &MultiValidationError{}
	if multi.ErrorOrNil() != nil {
		t.Fatalf("empty multi error should be nil")
	}
	multi.Add("address", "", "required")
	if multi.Error() != "validation error on field 'address': required" {
		t.Errorf("single error text %q", multi.Error())
	}
	multi.Add("beds", -1, "gte")
	if !strings.HasPrefix(multi.Error(), "2 validation errors occurred") {
		t.Errorf("multi error text %q", multi.Error())
	}
}

func TestErrorTypeRetryable(t *testing.T) {
	for _, typ := range []ErrorType{ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeConnectionError} {
		if !typ.Retryable() {
			t.Errorf("%s should be retryable", typ)
		}
	}
	for _, typ := range []ErrorType{ErrorTypeAuthentication, ErrorTypeContextLength, ErrorTypeInvalidModel, ErrorTypeUnknown} {
		if typ.Retryable() {
			t.Errorf("%s should not be retryable", typ)
		}
	}
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{fmt.Errorf("post: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{context.Canceled, ErrorTypeUnknown},
		{errors.New("read tcp: connection reset by peer"), ErrorTypeConnectionError},
		{errors.New("unexpected EOF"), ErrorTypeConnectionError},
		{errors.New("weird"), ErrorTypeUnknown},
	}
	for _, tt := range tests {
		got := TransportError(ProviderGemini, tt.err)
		if got.Type != tt.want || !errors.Is(got, tt.err) {
			t.Errorf("TransportError(%v) = %s, want %s", tt.err, got.Type, tt.want)
		}
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorTypeUnknown           ErrorType = "unknown"
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeAuthentication    ErrorType = "authentication_error"
	ErrorTypePermission        ErrorType = "permission_error"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeRateLimit         ErrorType = "rate_limit_exceeded"
	ErrorTypeInsufficientQuota ErrorType = "insufficient_quota"
	ErrorTypeInvalidModel      ErrorType = "invalid_model"
	ErrorTypeContextLength     ErrorType = "context_length_exceeded"
	ErrorTypeContentFilter     ErrorType = "content_filter"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeConnectionError   ErrorType = "connection_error"
)

// Retryable reports whether a failure of this type may succeed on retry.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeTimeout, ErrorTypeConnectionError:
		return true
	}
	return false
}

// LLMError is the error every provider client returns.
type LLMError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	Provider   Provider  `json:"provider"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	// RetryAfter is a provider hint in seconds; the retrier waits at least this long.
	RetryAfter int   `json:"retry_after,omitempty"`
	Cause      error `json:"-"`
}

func (e *LLMError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// IsRetryable returns true if the error is retryable
func (e *LLMError) IsRetryable() bool { return e.Retryable }

// NewLLMError creates an error of the given type; retryability follows the type.
func NewLLMError(provider Provider, errorType ErrorType, message string) *LLMError {
	return &LLMError{
		Type:      errorType,
		Message:   message,
		Provider:  provider,
		Retryable: errorType.Retryable(),
	}
}

// NewLLMErrorWithCause creates a new LLM error with an underlying cause
func NewLLMErrorWithCause(provider Provider, errorType ErrorType, message string, cause error) *LLMError {
	err := NewLLMError(provider, errorType, message)
	err.Cause = cause
	return err
}

type statusClass struct {
	typ     ErrorType
	message string
}

var statusClasses = map[int]statusClass{
	http.StatusBadRequest:          {ErrorTypeInvalidRequest, "Invalid request parameters"},
	http.StatusUnauthorized:        {ErrorTypeAuthentication, "Invalid API key or authentication failed"},
	http.StatusForbidden:           {ErrorTypePermission, "Permission denied"},
	http.StatusNotFound:            {ErrorTypeNotFound, "Resource not found"},
	http.StatusTooManyRequests:     {ErrorTypeRateLimit, "Rate limit exceeded"},
	http.StatusInternalServerError: {ErrorTypeServerError, "Server error occurred"},
	http.StatusBadGateway:          {ErrorTypeServerError, "Server error occurred"},
	http.StatusServiceUnavailable:  {ErrorTypeServerError, "Server error occurred"},
	http.StatusGatewayTimeout:      {ErrorTypeServerError, "Server error occurred"},
}

// bodyPatterns refine the status class from the response body. All needles
// of a group must match; the first matching pattern wins.
var bodyPatterns = []struct {
	anyOf   []string
	allOf   []string
	typ     ErrorType
	message string
}{
	{anyOf: []string{"rate limit", "too many requests"}, typ: ErrorTypeRateLimit, message: "Rate limit exceeded"},
	{anyOf: []string{"insufficient quota", "quota exceeded"}, typ: ErrorTypeInsufficientQuota, message: "Insufficient quota or credits"},
	{anyOf: []string{"context length", "token limit"}, typ: ErrorTypeContextLength, message: "Context length exceeded"},
	{anyOf: []string{"content filter", "safety"}, typ: ErrorTypeContentFilter, message: "Content filtered by safety system"},
	{anyOf: []string{"not found", "invalid", "does not exist"}, allOf: []string{"model"}, typ: ErrorTypeInvalidModel, message: "Invalid or unavailable model"},
}

const maxBodyInMessage = 200

// ParseHTTPError maps an HTTP status code and response body onto an LLMError.
func ParseHTTPError(provider Provider, statusCode int, body string) *LLMError {
	class, ok := statusClasses[statusCode]
	if !ok {
		class = statusClass{ErrorTypeUnknown, fmt.Sprintf("HTTP %d error", statusCode)}
	}
	if body != "" {
		if specific := extractSpecificError(provider, body); specific != nil {
			specific.HTTPStatus = statusCode
			return specific
		}
		class.message += ": " + truncateBody(body, maxBodyInMessage)
	}
	err := NewLLMError(provider, class.typ, class.message)
	err.HTTPStatus = statusCode
	return err
}

func extractSpecificError(provider Provider, body string) *LLMError {
	lower := strings.ToLower(body)
	for _, p := range bodyPatterns {
		if containsAll(lower, p.allOf) && containsAny(lower, p.anyOf) {
			return NewLLMError(provider, p.typ, p.message)
		}
	}
	return nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

func truncateBody(body string, maxLength int) string {
	if len(body) <= maxLength {
		return body
	}
	return body[:maxLength] + "..."
}

// TransportError classifies a failure that never produced an API error body:
// deadlines, cancellation and dropped connections.
func TransportError(provider Provider, err error) *LLMError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewLLMErrorWithCause(provider, ErrorTypeTimeout, "request timeout", err)
	case errors.Is(err, context.Canceled):
		return NewLLMErrorWithCause(provider, ErrorTypeUnknown, "request canceled", err)
	case containsAny(strings.ToLower(err.Error()), []string{"connection", "network", "eof"}):
		return NewLLMErrorWithCause(provider, ErrorTypeConnectionError, "connection error", err)
	}
	return NewLLMErrorWithCause(provider, ErrorTypeUnknown, err.Error(), err)
}

// IsLLMError reports whether err wraps an *LLMError and returns it
func IsLLMError(err error) (*LLMError, bool) {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

func hasType(err error, t ErrorType) bool {
	llmErr, ok := IsLLMError(err)
	return ok && llmErr.Type == t
}

// IsRetryableError reports whether err wraps a retryable LLMError. It goes
// by the error type, so hand-built errors behave like parsed ones.
func IsRetryableError(err error) bool {
	llmErr, ok := IsLLMError(err)
	return ok && llmErr.Type.Retryable()
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool { return hasType(err, ErrorTypeRateLimit) }

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool { return hasType(err, ErrorTypeAuthentication) }

// ValidationError represents a validation error for structured outputs
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", v.Field, v.Message)
	}
	return fmt.Sprintf("validation error: %s", v.Message)
}

// MultiValidationError collects field-level validation errors
type MultiValidationError struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface
func (m *MultiValidationError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	msgs := make([]string, 0, len(m.Errors))
	for _, e := range m.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d validation errors occurred: %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Add adds a validation error
func (m *MultiValidationError) Add(field string, value interface{}, message string) {
	m.Errors = append(m.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (m *MultiValidationError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ErrorOrNil returns the error if there are validation errors, otherwise nil
func (m *MultiValidationError) ErrorOrNil() error {
	if m.HasErrors() {
		return m
	}
	return nil
}

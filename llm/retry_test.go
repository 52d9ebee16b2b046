package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func fastRetrier(maxRetries int) *Retrier {
	return NewRetrier(RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 || cfg.InitialDelay <= 0 || cfg.MaxDelay <= cfg.InitialDelay || cfg.BackoffFactor <= 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

// scripted returns the given errors in order, then succeeds.
func scripted(errs ...error) (RetryOperation[string], *int) {
	calls := 0
	return func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < len(errs) {
			return "", errs[attempt]
		}
		return "answer", nil
	}, &calls
}

func TestExecute(t *testing.T) {
	rateLimited := NewLLMError(ProviderOpenAI, ErrorTypeRateLimit, "slow down")
	overloaded := ParseHTTPError(ProviderAnthropic, 503, "")
	auth := NewLLMError(ProviderOpenAI, ErrorTypeAuthentication, "bad key")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   string
	}{
		{name: "first try", wantCalls: 1},
		{name: "rate limited then ok", errs: []error{rateLimited, rateLimited}, wantCalls: 3},
		{name: "unavailable then ok", errs: []error{overloaded}, wantCalls: 2},
		{name: "auth fails fast", errs: []error{auth}, wantCalls: 1, wantErr: "bad key"},
		{name: "plain error not retried", errs: []error{errors.New("boom")}, wantCalls: 1, wantErr: "boom"},
		{name: "exhausted", errs: []error{rateLimited, rateLimited, rateLimited}, wantCalls: 3, wantErr: "operation failed after 3 attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, calls := scripted(tt.errs...)
			got, err := Execute(fastRetrier(2), context.Background(), op)
			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			if tt.wantErr == "" {
				if err != nil || got != "answer" {
					t.Fatalf("got %q, %v", got, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExecute_ExhaustedKeepsCause(t *testing.T) {
	op, _ := scripted(
		NewLLMError(ProviderGemini, ErrorTypeServerError, "a"),
		NewLLMError(ProviderGemini, ErrorTypeServerError, "b"),
	)
	_, err := Execute(fastRetrier(1), context.Background(), op)
	if !IsRetryableError(err) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestExecute_ContextCancelledWhileWaiting(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Second, BackoffFactor: 2})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	op, calls := scripted(NewLLMError(ProviderOpenAI, ErrorTypeTimeout, "t"), nil, nil)
	start := time.Now()
	_, err := Execute(r, ctx, op)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if *calls != 1 || time.Since(start) > 500*time.Millisecond {
		t.Fatalf("retrier kept waiting after cancellation")
	}
}

func TestShouldRetry_ConfiguredSubstrings(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxRetries: 2, RetryableErrors: []string{"connection_error"}})
	if !r.shouldRetry(fmt.Errorf("dial: CONNECTION_ERROR"), 0) {
		t.Errorf("configured substring should be retried")
	}
	if r.shouldRetry(fmt.Errorf("dial: connection_error"), 2) {
		t.Errorf("no retry past MaxRetries")
	}
	if r.shouldRetry(fmt.Errorf("bad input"), 0) {
		t.Errorf("unlisted error retried")
	}
}

func TestCalculateDelay(t *testing.T) {
	r := NewRetrier(RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2})
	plain := errors.New("x")

	for attempt, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond} {
		got := r.calculateDelay(attempt, plain)
		lo, hi := want*3/4, want*5/4
		if lo < 100*time.Millisecond {
			lo = 100 * time.Millisecond
		}
		if got < lo || got > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, lo, hi)
		}
	}
	if got := r.calculateDelay(10, plain); got != time.Second {
		t.Errorf("delay not capped: %v", got)
	}

	hinted := &LLMError{Type: ErrorTypeRateLimit, RetryAfter: 20}
	if got := r.calculateDelay(0, hinted); got != 20*time.Second {
		t.Errorf("retry-after ignored: %v", got)
	}
}

func TestCalculateDelay_Concurrent(t *testing.T) {
	r := fastRetrier(3)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			if d := r.calculateDelay(attempt%4, errors.New("x")); d <= 0 {
				t.Errorf("non-positive delay %v", d)
			}
		}(i)
	}
	wg.Wait()
}

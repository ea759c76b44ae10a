package trace

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// TestRetryWithBackoff tests basic retry logic.
func TestRetryWithBackoff(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		got, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 7, nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if got != 7 {
			t.Errorf("Expected result 7, got %d", got)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		_, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("temporary error")
			}
			return 1, nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		_, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 0, errors.New("persistent error")
		})

		if err == nil {
			t.Error("Expected error after max retries")
		}
		// initial + 3 retries
		if attempts != 4 {
			t.Errorf("Expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("Not retryable stops immediately", func(t *testing.T) {
		attempts := 0
		_, err := RetryWithBackoff(context.Background(), fastRetry(), func() (int, error) {
			attempts++
			return 0, errors.Join(errors.New("bad document"), ErrNotRetryable)
		})

		if !errors.Is(err, ErrNotRetryable) {
			t.Errorf("Expected ErrNotRetryable, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := fastRetry()
		cfg.InitialDelay = time.Second

		attempts := 0
		_, err := RetryWithBackoff(ctx, cfg, func() (int, error) {
			attempts++
			cancel()
			return 0, errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
		}
	})

	t.Run("OnRetry is called for each retry", func(t *testing.T) {
		cfg := fastRetry()
		calls := 0
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			calls++
			if attempt != calls {
				t.Errorf("Expected attempt %d, got %d", calls, attempt)
			}
		}

		_, _ = RetryWithBackoff(context.Background(), cfg, func() (int, error) {
			return 0, errors.New("error")
		})

		if calls != cfg.MaxRetries {
			t.Errorf("Expected %d OnRetry calls, got %d", cfg.MaxRetries, calls)
		}
	})

	t.Run("Retry-After overrides backoff", func(t *testing.T) {
		cfg := fastRetry()
		cfg.MaxRetries = 1
		var delays []time.Duration
		cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		}

		_, _ = RetryWithBackoff(context.Background(), cfg, func() (int, error) {
			return 0, &RateLimitError{StatusCode: 429, RetryAfter: 5 * time.Millisecond, Message: "slow down"}
		})

		if len(delays) != 1 || delays[0] != 5*time.Millisecond {
			t.Errorf("Expected single 5ms delay, got %v", delays)
		}
	})
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{StatusCode: 429, RetryAfter: 30 * time.Second, Message: "Rate limit exceeded"}
	if err.Error() != "Rate limit exceeded (retry after 30s)" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	wrapped := errors.Join(errors.New("fetch failed"), err)
	rle, ok := IsRateLimitError(wrapped)
	if !ok || rle.RetryAfter != 30*time.Second {
		t.Errorf("Expected wrapped rate limit error, got %v", rle)
	}

	if _, ok := IsRateLimitError(errors.New("other")); ok {
		t.Error("Expected plain error not to be a rate limit error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"Seconds", "120", 120 * time.Second},
		{"Missing", "", 0},
		{"Garbage", "soon", 0},
		{"Date in the past", "Mon, 02 Jan 2006 15:04:05 GMT", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := parseRetryAfter(h); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

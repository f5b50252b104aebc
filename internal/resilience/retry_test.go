package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUnavailable = &StatusError{StatusCode: 503, URL: "https://spear.test/api"}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{}, func(_ context.Context) (int, error) {
		calls++
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3}, func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errUnavailable
		}
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 3}, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-transient), got %d", calls)
	}
}

func TestDoVal_OnceImmediately_ExactlyTwoAttempts(t *testing.T) {
	var calls, hooks int
	cfg := OnceImmediately()
	cfg.BeforeRetry = func(_ context.Context, attempt int, _ error) error {
		hooks++
		if attempt != 2 {
			t.Errorf("expected BeforeRetry for attempt 2, got %d", attempt)
		}
		return nil
	}

	start := time.Now()
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		return "", errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if hooks != 1 {
		t.Errorf("expected 1 BeforeRetry call, got %d", hooks)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Error("immediate retry should not sleep")
	}
}

func TestDoVal_ReturnsValueAfterRetry(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), OnceImmediately(), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("first fails")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestDoVal_BeforeRetryErrorStops(t *testing.T) {
	var calls int
	hookErr := errors.New("refresh failed")
	cfg := OnceImmediately()
	cfg.BeforeRetry = func(context.Context, int, error) error { return hookErr }

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		return "", errors.New("lookup failed")
	})
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := DoVal(ctx, RetryConfig{MaxAttempts: 5}, func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, errUnavailable
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel stopped retries, got %d", calls)
	}
}

func TestDoVal_OnRetryAttemptNumbers(t *testing.T) {
	var seen []int
	cfg := RetryConfig{
		MaxAttempts: 3,
		ShouldRetry: func(error) bool { return true },
		OnRetry:     func(attempt int, _ error) { seen = append(seen, attempt) },
	}

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errors.New("fails")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", seen)
	}
}

func TestDoVal_DefaultsToTwoAttempts(t *testing.T) {
	var calls int
	_, _ = DoVal(context.Background(), RetryConfig{}, func(_ context.Context) (int, error) {
		calls++
		return 0, errUnavailable
	})
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

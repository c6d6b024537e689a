package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnRateLimits(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(errors.New("plain failure"))
	cb.OnError(RateLimitError{Provider: "openai"})
	if !cb.Allow() {
		t.Fatalf("expected breaker closed below threshold")
	}
	cb.OnError(RateLimitError{Provider: "openai"})
	if cb.Allow() {
		t.Fatalf("expected breaker open at threshold")
	}
	now = now.Add(61 * time.Second)
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after cooldown")
	}
}

func TestCircuitBreakerHonorsRetryAfter(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = func() time.Time { return now }
	cb.OnError(RateLimitError{RetryAfter: 10 * time.Second})
	now = now.Add(5 * time.Second)
	if cb.Allow() {
		t.Fatalf("expected retry-after to extend the open window")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("expected success to reset the breaker")
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	if got := (RateLimitError{Provider: "elevenlabs"}).Error(); got != "elevenlabs: rate limit" {
		t.Fatalf("unexpected message %q", got)
	}
	if !IsRateLimit(errors.Join(errors.New("x"), RateLimitError{})) {
		t.Fatalf("expected joined rate limit to be detected")
	}
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	calls := 0
	err := NewRetryPolicy(3, time.Millisecond).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("not ready")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second call, calls=%d err=%v", calls, err)
	}
}

func TestRetryPolicyRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := NewRetryPolicy(5, time.Second).Do(ctx, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single attempt on cancelled context, calls=%d", calls)
	}
}

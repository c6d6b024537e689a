package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/resilience"
)

type scriptedAdapter struct {
	errs  []error
	calls int
}

func (s *scriptedAdapter) Name() string { return "scripted" }

func (s *scriptedAdapter) Generate(_ context.Context, input Context) (Response, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return Response{}, err
		}
	}
	return Response{Text: "ok:" + input.Messages[0].Content}, nil
}

func TestRetryAdapterRecovers(t *testing.T) {
	inner := &scriptedAdapter{errs: []error{errors.New("reset by peer")}}
	mem := metrics.NewMemoryObserver()
	a := NewRetryAdapter(inner, RetryConfig{MaxAttempts: 3, Sleep: func(time.Duration) {}})
	a.SetObserver(mem)

	resp, err := a.Generate(context.Background(), UserPrompt("", "hi", 10, Temperature(0.5)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "ok:hi" || inner.calls != 2 {
		t.Fatalf("unexpected result %q after %d calls", resp.Text, inner.calls)
	}
	if mem.Count(metrics.EventRetryAttempt) != 1 {
		t.Fatalf("expected one retry event")
	}
}

func TestRetryDoesNotRetryRateLimit(t *testing.T) {
	inner := &scriptedAdapter{errs: []error{resilience.RateLimitError{Provider: "x"}}}
	a := NewRetryAdapter(inner, RetryConfig{MaxAttempts: 3, Sleep: func(time.Duration) {}})
	if _, err := a.Generate(context.Background(), UserPrompt("", "hi", 10, nil)); !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected single call, got %d", inner.calls)
	}
}

func TestCircuitBreakerAdapterDenies(t *testing.T) {
	rl := resilience.RateLimitError{Provider: "x"}
	inner := &scriptedAdapter{errs: []error{rl}}
	mem := metrics.NewMemoryObserver()
	a := NewCircuitBreakerAdapter(inner, resilience.NewCircuitBreaker(1, time.Minute))
	a.SetObserver(mem)

	if _, err := a.Generate(context.Background(), UserPrompt("", "hi", 10, nil)); err == nil {
		t.Fatalf("expected first call to fail")
	}
	_, err := a.Generate(context.Background(), UserPrompt("", "hi", 10, nil))
	if !errorsx.HasReason(err, errorsx.ReasonLLMCircuitOpen) {
		t.Fatalf("expected circuit open reason, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected denied call to skip provider")
	}
	if mem.Count(metrics.EventBreakerDenied) != 1 || mem.Count(metrics.EventRateLimit) != 1 {
		t.Fatalf("expected breaker metrics, got %+v", mem.Events)
	}
}

func TestUserPrompt(t *testing.T) {
	c := UserPrompt("sys", "hello", 150, Temperature(0.7))
	if c.System != "sys" || len(c.Messages) != 1 || c.Messages[0].Role != RoleUser || c.MaxTokens != 150 {
		t.Fatalf("unexpected context %+v", c)
	}
	if c.Temperature == nil || *c.Temperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", c.Temperature)
	}
}

package llm

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/resilience"
)

// CircuitBreakerAdapter sheds completion calls while the provider keeps
// rate limiting, so turns go straight to their fallback reply instead of
// waiting out the completion timeout.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	tripped atomic.Bool
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if !a.breaker.Allow() {
		a.record(metrics.EventBreakerDenied)
		return Response{}, errorsx.Wrap(
			resilience.RateLimitError{Provider: a.Name(), Message: "circuit open"},
			errorsx.ReasonLLMCircuitOpen)
	}
	resp, err := a.inner.Generate(ctx, input)
	if err == nil {
		a.breaker.OnSuccess()
		if a.tripped.CompareAndSwap(true, false) {
			a.record(metrics.EventBreakerClose)
		}
		return resp, nil
	}
	if !resilience.IsRateLimit(err) {
		return Response{}, err
	}
	a.record(metrics.EventRateLimit)
	a.breaker.OnError(err)
	// The error may have pushed the breaker over its threshold.
	if !a.breaker.Allow() && a.tripped.CompareAndSwap(false, true) {
		a.record(metrics.EventBreakerOpen)
	}
	return Response{}, errorsx.Wrap(err, errorsx.ReasonLLMRateLimit)
}

func (a *CircuitBreakerAdapter) record(name string) {
	metrics.Record(a.obs, name, 1, map[string]string{
		"provider":  a.inner.Name(),
		"component": "llm",
	})
}

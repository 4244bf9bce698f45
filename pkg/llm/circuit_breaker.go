package llm

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/harunnryd/parley/pkg/resilience"
)

const (
	EventBreakerOpen   = "llm_breaker_open"
	EventBreakerClose  = "llm_breaker_close"
	EventBreakerDenied = "llm_breaker_denied"
	EventRateLimit     = "llm_rate_limit"
)

// CircuitBreakerGenerator refuses calls while the breaker is open. Refusals
// carry the generator_degraded reason.
type CircuitBreakerGenerator struct {
	inner   Generator
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	open    bool
	mu      sync.Mutex
}

func NewCircuitBreakerGenerator(inner Generator, breaker *resilience.CircuitBreaker) *CircuitBreakerGenerator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerGenerator{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerGenerator) Name() string { return a.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerGenerator) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerGenerator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	if !a.breaker.Allow() {
		a.setOpen(true)
		a.record(EventBreakerDenied)
		return "", errorsx.Wrap(resilience.ErrCircuitOpen, errorsx.ReasonGeneratorDegraded)
	}
	a.setOpen(false)
	text, err := a.inner.Generate(ctx, history)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(EventRateLimit)
		}
		a.breaker.OnError(err)
		return "", err
	}
	a.breaker.OnSuccess()
	return text, nil
}

func (a *CircuitBreakerGenerator) record(name string) {
	metrics.Record(a.obs, name, 1, map[string]string{
		"provider":  a.inner.Name(),
		"component": "llm",
	})
}

func (a *CircuitBreakerGenerator) setOpen(open bool) {
	a.mu.Lock()
	changed := a.open != open
	a.open = open
	a.mu.Unlock()
	if !changed {
		return
	}
	if open {
		a.record(EventBreakerOpen)
		return
	}
	a.record(EventBreakerClose)
}

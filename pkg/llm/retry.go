package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/resilience"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	IsRetryable func(error) bool
	// Sleep waits between attempts and returns early with ctx's error when
	// the caller goes away.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	return cfg
}

// Retry calls fn up to MaxAttempts times, backing off exponentially between
// retryable failures. Non-retryable errors and ctx cancellation end it early.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var (
		zero T
		err  error
	)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}
		var out T
		if out, err = fn(ctx); err == nil {
			return out, nil
		}
		if attempt == cfg.MaxAttempts || !cfg.IsRetryable(err) {
			break
		}
		if serr := cfg.Sleep(ctx, cfg.delay(attempt, rng)); serr != nil {
			return zero, serr
		}
	}
	return zero, fmt.Errorf("llm retry failed: %w", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// delay is BaseDelay doubled per prior attempt, capped at MaxDelay, plus up
// to Jitter of itself.
func (cfg RetryConfig) delay(attempt int, rng *rand.Rand) time.Duration {
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	d = min(d, cfg.MaxDelay)
	if cfg.Jitter > 0 {
		d += time.Duration(float64(d) * cfg.Jitter * rng.Float64())
	}
	return d
}

// DefaultIsRetryable retries network failures and 5xx replies. Rate limits
// feed the circuit breaker instead.
func DefaultIsRetryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		resilience.IsRateLimit(err):
		return false
	}
	if status := (StatusError{}); errors.As(err, &status) {
		return status.Code >= 500
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// RetryGenerator retries the inner generator per cfg.
type RetryGenerator struct {
	inner Generator
	cfg   RetryConfig
}

func NewRetryGenerator(inner Generator, cfg RetryConfig) *RetryGenerator {
	return &RetryGenerator{inner: inner, cfg: cfg}
}

func (g *RetryGenerator) Name() string { return g.inner.Name() }

func (g *RetryGenerator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	return Retry(ctx, g.cfg, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, history)
	})
}

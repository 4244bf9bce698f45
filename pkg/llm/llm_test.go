package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/harunnryd/parley/pkg/resilience"
)

type scriptedGenerator struct {
	calls int
	errs  []error
	reply string
}

func (s *scriptedGenerator) Name() string { return "scripted" }

func (s *scriptedGenerator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.reply, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRetryGeneratorRetriesServerErrors(t *testing.T) {
	inner := &scriptedGenerator{
		errs:  []error{StatusError{Provider: "x", Code: 503}, StatusError{Provider: "x", Code: 502}},
		reply: "ok",
	}
	g := NewRetryGenerator(inner, RetryConfig{MaxAttempts: 3, Sleep: noSleep})
	got, err := g.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || inner.calls != 3 {
		t.Fatalf("got %q after %d calls", got, inner.calls)
	}
}

func TestRetryStopsBackoffOnCancel(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{StatusError{Code: 503}, StatusError{Code: 503}}}
	g := NewRetryGenerator(inner, RetryConfig{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	started := time.Now()
	_, err := g.Generate(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("backoff ignored cancellation, took %v", elapsed)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one attempt before cancel, got %d", inner.calls)
	}
}

func TestRetryGeneratorDoesNotRetryClientErrors(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{StatusError{Code: 400}, nil}}
	g := NewRetryGenerator(inner, RetryConfig{MaxAttempts: 3, Sleep: noSleep})
	if _, err := g.Generate(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected single call, got %d", inner.calls)
	}
}

func TestDefaultIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{resilience.RateLimitError{}, false},
		{StatusError{Code: 500}, true},
		{StatusError{Code: 404}, false},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := DefaultIsRetryable(tc.err); got != tc.want {
			t.Fatalf("DefaultIsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestCircuitBreakerGeneratorDegrades(t *testing.T) {
	rl := resilience.RateLimitError{Provider: "x"}
	inner := &scriptedGenerator{errs: []error{rl, rl}, reply: "fine"}
	obs := metrics.NewMemoryObserver()
	g := NewCircuitBreakerGenerator(inner, resilience.NewCircuitBreaker(2, time.Minute))
	g.SetObserver(obs)

	for i := 0; i < 2; i++ {
		if _, err := g.Generate(context.Background(), nil); !resilience.IsRateLimit(err) {
			t.Fatalf("expected rate limit, got %v", err)
		}
	}
	_, err := g.Generate(context.Background(), nil)
	if !errorsx.HasReason(err, errorsx.ReasonGeneratorDegraded) {
		t.Fatalf("expected degraded reason, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected breaker to stop calls, got %d", inner.calls)
	}
	if obs.Count(EventBreakerOpen) != 1 || obs.Count(EventRateLimit) != 2 {
		t.Fatalf("unexpected events %+v", obs.Events())
	}
}

func TestApologyGeneratorMapsFailures(t *testing.T) {
	ap := DefaultApologies()
	cases := []struct {
		err  error
		want string
	}{
		{StatusError{Code: 401}, ap.Auth},
		{fmt.Errorf("llm retry failed: %w", resilience.RateLimitError{}), ap.RateLimit},
		{StatusError{Code: 500}, fmt.Sprintf(ap.Status, 500)},
		{fmt.Errorf("decode: %w", ErrMalformedResponse), ap.Format},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, ap.Network},
		{errors.New("weird"), ap.Unexpected},
	}
	for _, tc := range cases {
		g := NewApologyGenerator(&scriptedGenerator{errs: []error{tc.err}}, ap, nil)
		got, err := g.Generate(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected apology for %v, got error %v", tc.err, err)
		}
		if got != tc.want {
			t.Fatalf("for %v got %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestApologyGeneratorPassesThroughDegradedAndCancel(t *testing.T) {
	degraded := errorsx.Wrap(resilience.ErrCircuitOpen, errorsx.ReasonGeneratorDegraded)
	g := NewApologyGenerator(&scriptedGenerator{errs: []error{degraded}}, DefaultApologies(), nil)
	if _, err := g.Generate(context.Background(), nil); !errorsx.HasReason(err, errorsx.ReasonGeneratorDegraded) {
		t.Fatalf("expected degraded error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g = NewApologyGenerator(&scriptedGenerator{errs: []error{context.Canceled}}, DefaultApologies(), nil)
	_, err := g.Generate(ctx, nil)
	if !errors.Is(err, context.Canceled) || !strings.Contains(err.Error(), "canceled") {
		t.Fatalf("expected cancel error, got %v", err)
	}
}

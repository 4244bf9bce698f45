package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LifecycleRunner owns the process lifetime: start hooks, wait for a signal,
// then drain sessions and stop listeners within one shutdown budget.
type LifecycleRunner struct {
	hooks   Hooks
	drainer Drainer
	budget  time.Duration

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, budget time.Duration) *LifecycleRunner {
	if budget <= 0 {
		budget = 10 * time.Second
	}
	r := &LifecycleRunner{hooks: hooks, drainer: drainer, budget: budget}
	r.state.Store(int32(StateNew))
	return r
}

// Run blocks until ctx ends or Stop is called. It may be called once.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return fmt.Errorf("runner already %s", r.State())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	PrintBanner(BannerOutput)
	if start := r.hooks.OnStart; start != nil {
		if err := start(ctx); err != nil {
			cancel()
			r.state.Store(int32(StateStopped))
			return fmt.Errorf("start: %w", err)
		}
	}
	r.state.Store(int32(StateRunning))
	slog.Info("runner_running", slog.String("version", Version))

	<-ctx.Done()
	return r.shutdown()
}

// Stop wakes Run and performs the shutdown sequence; safe to call repeatedly.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return r.shutdown()
}

func (r *LifecycleRunner) State() State { return State(r.state.Load()) }

func (r *LifecycleRunner) shutdown() error {
	r.shutdownOnce.Do(func() {
		r.state.Store(int32(StateDraining))
		begin := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), r.budget)
		defer cancel()

		// Sessions first so clients get their close frames before the
		// listener goes away.
		var drainErr, stopErr error
		if r.drainer != nil {
			drainErr = r.drainer.Drain(ctx)
			if errors.Is(drainErr, context.DeadlineExceeded) {
				drainErr = fmt.Errorf("drain timeout after %s: %w", r.budget, drainErr)
			}
		}
		if stop := r.hooks.OnStop; stop != nil {
			if err := stop(ctx); err != nil {
				stopErr = fmt.Errorf("stop: %w", err)
			}
		}
		r.shutdownErr = errors.Join(drainErr, stopErr)
		r.state.Store(int32(StateStopped))
		slog.Info("runner_stopped",
			slog.Duration("elapsed", time.Since(begin)),
			slog.Bool("clean", r.shutdownErr == nil))
	})
	return r.shutdownErr
}

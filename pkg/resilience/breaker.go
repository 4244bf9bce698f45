package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreaker trips after threshold consecutive counted failures and
// refuses calls until the cooldown has passed. Only rate limits count unless
// WithCounter says otherwise; other errors leave the streak untouched.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	counts    func(error) bool
	now       func() time.Time

	mu       sync.Mutex
	streak   int
	reopenAt time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		threshold: 3,
		cooldown:  30 * time.Second,
		counts:    IsRateLimit,
		now:       time.Now,
	}
	if threshold > 0 {
		cb.threshold = threshold
	}
	if cooldown > 0 {
		cb.cooldown = cooldown
	}
	return cb
}

func (c *CircuitBreaker) WithCounter(fn func(error) bool) *CircuitBreaker {
	if fn != nil {
		c.counts = fn
	}
	return c
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reopenAt.IsZero() || !c.now().Before(c.reopenAt)
}

func (c *CircuitBreaker) Open() bool { return !c.Allow() }

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.streak, c.reopenAt = 0, time.Time{}
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if err == nil || !c.counts(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streak++; c.streak < c.threshold {
		return
	}
	c.streak = 0
	c.reopenAt = c.now().Add(c.cooldown)
}

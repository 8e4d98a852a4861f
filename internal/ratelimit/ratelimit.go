// Package ratelimit provides a token bucket limiter for calls to the
// external model service. State is in-memory only and resets on restart.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket. Tokens refill continuously at
// rpm/60 per second up to the burst size. All state is guarded by a
// single mutex.
type Limiter struct {
	mu sync.Mutex

	// Configuration
	requestsPerMinute int
	burst             float64

	// Token bucket state
	tokens     float64
	lastUpdate time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
}

// Status reports current limiter state.
type Status struct {
	TokensAvailable int           `json:"tokens_available"`
	Burst           int           `json:"burst"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
}

// New creates a limiter. burst <= 0 defaults the bucket capacity to
// requestsPerMinute.
func New(requestsPerMinute, burst int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		burst:             float64(burst),
		tokens:            float64(burst),
		lastUpdate:        time.Now(),
	}
}

// Acquire blocks until n tokens are available or the context is cancelled.
// Available tokens are recomputed from elapsed wall time on each wake.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	need := float64(n)
	for {
		l.mu.Lock()
		l.refill()

		if l.tokens >= need {
			l.tokens -= need
			l.totalConsumed += int64(n)
			l.mu.Unlock()
			return nil
		}

		// Time until enough tokens accumulate
		missing := need - l.tokens
		waitTime := time.Duration(missing / l.refillRate() * float64(time.Second))
		l.mu.Unlock()

		// Wait outside the lock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			l.mu.Lock()
			l.totalWaited += waitTime
			l.mu.Unlock()
		}
	}
}

// TryAcquire attempts to take n tokens without blocking. It debits only
// on success.
func (l *Limiter) TryAcquire(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		l.totalConsumed += int64(n)
		return true
	}
	return false
}

// SetRate updates the refill rate and bucket capacity in place, for config
// reloads. Outstanding tokens are clamped to the new burst.
func (l *Limiter) SetRate(requestsPerMinute, burst int) {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	l.requestsPerMinute = requestsPerMinute
	l.burst = float64(burst)
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}

// Status returns a snapshot of the limiter state.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	utilization := 1.0 - (l.tokens / l.burst)
	if utilization < 0 {
		utilization = 0
	}

	var timeUntilToken time.Duration
	if l.tokens < 1.0 {
		timeUntilToken = time.Duration((1.0 - l.tokens) / l.refillRate() * float64(time.Second))
	}

	return Status{
		TokensAvailable: int(l.tokens),
		Burst:           int(l.burst),
		Utilization:     utilization,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   l.totalConsumed,
		TotalWaited:     l.totalWaited,
	}
}

// refillRate returns tokens per second. Must be called with lock held.
func (l *Limiter) refillRate() float64 {
	return float64(l.requestsPerMinute) / 60.0
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.refillRate()
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}

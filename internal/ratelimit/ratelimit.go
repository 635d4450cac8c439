// Package ratelimit provides the proactive concurrency and throughput
// limiting applied to every outbound model call, independent of the
// reactive retry/backoff a provider's rate-limit response triggers.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrContextCanceled is returned when the context is canceled while
// waiting to acquire a limiter slot.
var ErrContextCanceled = errors.New("ratelimit: context canceled while waiting")

// Semaphore bounds the number of concurrent in-flight calls. A nil
// Semaphore never limits.
type Semaphore struct {
	tickets chan struct{}
}

// NewSemaphore returns a Semaphore allowing up to maxConcurrent
// in-flight acquisitions. maxConcurrent <= 0 means unlimited.
func NewSemaphore(maxConcurrent int) *Semaphore {
	if maxConcurrent <= 0 {
		return nil
	}
	return &Semaphore{tickets: make(chan struct{}, maxConcurrent)}
}

func (s *Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case s.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrContextCanceled
	}
}

func (s *Semaphore) Release() {
	if s == nil {
		return
	}
	select {
	case <-s.tickets:
	default:
	}
}

// TokenBucket rate-limits calls per model name using a token-bucket
// algorithm, one bucket per model so a slow provider doesn't throttle a
// fast one.
type TokenBucket struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewTokenBucket returns a TokenBucket allowing ratePerMin calls per
// minute per model, with the given burst. ratePerMin <= 0 means
// unlimited.
func NewTokenBucket(ratePerMin, burst int) *TokenBucket {
	if ratePerMin <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(ratePerMin) / 60.0),
		burst:    burst,
	}
}

func (tb *TokenBucket) limiterFor(model string) *rate.Limiter {
	if tb == nil {
		return nil
	}
	tb.mu.RLock()
	l, ok := tb.limiters[model]
	tb.mu.RUnlock()
	if ok {
		return l
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	if l, ok = tb.limiters[model]; ok {
		return l
	}
	l = rate.NewLimiter(tb.limit, tb.burst)
	tb.limiters[model] = l
	return l
}

func (tb *TokenBucket) Acquire(ctx context.Context, model string) error {
	if tb == nil {
		return nil
	}
	return tb.limiterFor(model).Wait(ctx)
}

// Limiter combines a concurrency semaphore and a per-model token bucket.
// Acquire both before issuing a call; Release only returns the
// semaphore slot, since the token bucket has no notion of release.
type Limiter struct {
	semaphore *Semaphore
	buckets   *TokenBucket
}

// NewLimiter builds a Limiter permitting maxConcurrent in-flight calls
// and ratePerMin calls per minute per model.
func NewLimiter(maxConcurrent, ratePerMin int) *Limiter {
	return &Limiter{
		semaphore: NewSemaphore(maxConcurrent),
		buckets:   NewTokenBucket(ratePerMin, 1),
	}
}

func (l *Limiter) Acquire(ctx context.Context, model string) error {
	if err := l.semaphore.Acquire(ctx); err != nil {
		return err
	}
	if err := l.buckets.Acquire(ctx, model); err != nil {
		l.semaphore.Release()
		return err
	}
	return nil
}

func (l *Limiter) Release() {
	l.semaphore.Release()
}

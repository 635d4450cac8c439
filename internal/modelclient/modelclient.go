// Package modelclient wraps a provider-specific llm.Client with the
// rate-limit-aware retry loop every agent call goes through: on a
// rate-limit signal, parse the provider's suggested wait, sleep it plus
// a safety margin, and retry up to a fixed number of times.
package modelclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/ratelimit"
)

const (
	// MaxRetries bounds how many times a rate-limited call is retried
	// before the call fails with llm.ErrNoModelResponse.
	MaxRetries = 5

	// RetryMargin is added to every parsed provider wait duration as a
	// safety margin against clock skew between client and provider.
	RetryMargin = 5 * time.Second
)

// Client wraps an llm.Client with retry/backoff and proactive
// throttling. It satisfies llm.Client itself so callers can use it as a
// drop-in replacement for the bare provider client.
type Client struct {
	inner   llm.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	sleep   func(time.Duration)
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLimiter attaches a proactive concurrency/throughput limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger attaches a structured logger. Nil means use slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withSleep overrides the sleep function; used by tests to avoid real delays.
func withSleep(f func(time.Duration)) Option {
	return func(c *Client) { c.sleep = f }
}

// New wraps inner with retry/backoff semantics.
func New(inner llm.Client, opts ...Option) *Client {
	c := &Client{inner: inner, logger: slog.Default(), sleep: time.Sleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call issues one logical model call, retrying on a rate-limit signal
// up to MaxRetries times. Any other failure propagates immediately. If
// every retry is exhausted without a response, it returns
// llm.ErrNoModelResponse.
func (c *Client) Call(ctx context.Context, history llm.History, tools []llm.ToolSpec) (*llm.Response, error) {
	model := c.inner.GetModelName()

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, model); err != nil {
			return nil, err
		}
		defer c.limiter.Release()
	}

	for attempt := 0; attempt < MaxRetries; attempt++ {
		resp, err := c.inner.Call(ctx, history, tools)
		if err == nil {
			return resp, nil
		}

		if !llm.IsCategory(err, llm.CategoryRateLimit) {
			return nil, err
		}
		// A rate-limit error without a parsed wait sleeps RetryMargin alone.
		waitSeconds, _ := llm.RetryAfterSeconds(err)

		wait := time.Duration(waitSeconds*float64(time.Second)) + RetryMargin
		c.logger.Info("rate limit hit, retrying",
			slog.Int("attempt", attempt),
			slog.String("model", model),
			slog.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		c.sleep(wait)
	}

	return nil, llm.ErrNoModelResponse
}

func (c *Client) GetModelName() string { return c.inner.GetModelName() }

func (c *Client) Close() error { return c.inner.Close() }

// Package retry wraps a single operation with bounded exponential-backoff
// retry. Only errors classified as rate limiting are retried; everything else
// propagates immediately.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// retryAfterBuffer is added on top of a server-advised Retry-After delay.
const retryAfterBuffer = 500 * time.Millisecond

// Config bounds the retry behavior.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the default retry bounds: up to 5 retries, starting
// at 1s and capped at 60s.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// Classifier reports whether an error is retryable and, when the server
// advised a delay, how long it asked to wait.
type Classifier func(err error) (retryable bool, retryAfter time.Duration)

// Controller executes operations under a retry policy.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	// Overridable for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a Controller with the given bounds.
func New(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		jitter: rand.Float64,
	}
}

// Do runs op, retrying on rate-limit classifications until the bounds are
// exhausted. The operation is attempted MaxRetries+1 times in total; the last
// error is returned unchanged.
func Do[T any](ctx context.Context, c *Controller, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		retryable, retryAfter := classify(err)
		if !retryable {
			return zero, err
		}

		if attempt == c.cfg.MaxRetries {
			c.logger.Error("max retries exceeded",
				slog.Int("max_retries", c.cfg.MaxRetries),
				slog.String("error", err.Error()),
			)
			return zero, err
		}

		delay := c.delay(attempt, retryAfter)
		c.logger.Warn("rate limited, backing off",
			slog.Int("attempt", attempt+1),
			slog.Int("total_attempts", c.cfg.MaxRetries+1),
			slog.Duration("delay", delay),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// delay computes the backoff before the next attempt. A server-advised
// Retry-After wins over exponential backoff; both are capped at MaxDelay.
func (c *Controller) delay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter+retryAfterBuffer, c.cfg.MaxDelay)
	}

	exponential := c.cfg.BaseDelay << attempt
	// Jitter in [0, 25%] of the exponential delay to avoid thundering herd.
	jitter := time.Duration(c.jitter() * 0.25 * float64(exponential))
	return min(exponential+jitter, c.cfg.MaxDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

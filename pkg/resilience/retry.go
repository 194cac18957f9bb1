package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// UnlimitedAttempts lets Retry keep going until MaxElapsed or the context
// ends.
const UnlimitedAttempts = -1

type RetryConfig struct {
	// MaxAttempts bounds the number of calls. Zero means the default of 3;
	// UnlimitedAttempts removes the bound.
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// MaxElapsed stops retrying once this much time has passed since the
	// first attempt. Zero means no limit.
	MaxElapsed time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempt, time or context budget runs out. Non-retryable errors are returned
// unwrapped.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	defaults := defaultRetryConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = defaults.JitterFraction
	}
	logger := slog.Default().With("component", "retry", "operation", name)
	start := time.Now()
	var lastErr error
	for attempt := 1; cfg.MaxAttempts < 0 || attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		delay := computeDelay(attempt, cfg)
		if cfg.MaxElapsed > 0 && time.Since(start)+delay > cfg.MaxElapsed {
			return fmt.Errorf("retry budget of %v exhausted for %s: %w", cfg.MaxElapsed, name, lastErr)
		}
		logger.Warn("operation failed, retrying", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", lastErr, "next_delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	jitter := backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	backoff += jitter
	if backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialDelay)
	}
	return time.Duration(backoff)
}

// Backoff produces a growing sequence of pauses, for polling loops that run
// until an external condition holds rather than until a call succeeds.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	cur time.Duration
}

// Pause returns the next delay. The first call returns Initial.
func (b *Backoff) Pause() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
		if b.cur <= 0 {
			b.cur = time.Second
		}
		return b.cur
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}
	next := time.Duration(float64(b.cur) * mult)
	if b.Max > 0 && next > b.Max {
		next = b.Max
	}
	b.cur = next
	return next
}

// Sleep waits for the next pause or until ctx ends.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Pause())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

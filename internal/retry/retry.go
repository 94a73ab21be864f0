// Package retry provides bounded retry with exponential backoff for the
// adapters that talk to external services. The core grading pipeline
// never retries; only transient dependencies such as the embedding
// backend go through Do.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of tries including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialInterval is the delay after the first failed attempt.
	InitialInterval time.Duration

	// MaxInterval caps the grown delay. Zero means no cap.
	MaxInterval time.Duration

	// Multiplier grows the delay between attempts. Values below 1.0 are
	// treated as 1.0 so the interval never shrinks.
	Multiplier float64

	// UseJitter randomizes each delay between zero and the computed
	// backoff to spread out concurrent retries.
	UseJitter bool
}

// ExponentialBackoff calculates the delay before the given attempt
// number using the policy's multiplier, cap and optional full jitter.
// Returns zero for non-positive attempt numbers.
func ExponentialBackoff(attempt int, p Policy) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := p.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond // prevent a hot loop
	}

	for i := 1; i < attempt; i++ {
		multiplier := p.Multiplier
		if multiplier < 1.0 {
			multiplier = 1.0
		}
		backoff = time.Duration(float64(backoff) * multiplier)
		if p.MaxInterval > 0 && backoff > p.MaxInterval {
			backoff = p.MaxInterval
			break
		}
	}

	if p.UseJitter {
		// Full jitter: random between 0 and the computed backoff,
		// thread-safe via math/rand's top-level source.
		jitterMs := rand.Int63n(backoff.Milliseconds() + 1)
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}

// Do runs op until it succeeds, the policy's attempts are exhausted, or
// the context ends. The returned error wraps the last failure so callers
// can still match it with errors.Is and errors.As.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(ExponentialBackoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

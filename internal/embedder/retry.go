package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry behavior for embedding calls.
//
// The upstream service this replaces retried rate-limited embedding calls
// forever on a fixed 10s interval. That hid terminal misconfiguration behind
// an infinite loop, so retries here are capped: transient faults (429, 5xx,
// network) are retried with exponential backoff and jitter up to MaxAttempts,
// terminal faults surface immediately.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialInterval is the backoff before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the exponential backoff growth.
	MaxInterval time.Duration
	// Jitter is the ± fraction applied to each backoff interval (0.2 = ±20%)
	// so concurrent callers do not retry in lockstep.
	Jitter float64
}

// DefaultRetryConfig returns the retry defaults for embedding provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     6,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Jitter:          0.2,
	}
}

// RetryEmbedder wraps an Embedder with transient-fault retries.
// It is safe for concurrent use; each call's retry loop is local to that
// invocation and never blocks unrelated callers.
type RetryEmbedder struct {
	inner Embedder
	cfg   RetryConfig
	log   *slog.Logger
}

// NewRetryEmbedder wraps inner with the given retry config. A zero
// MaxAttempts falls back to DefaultRetryConfig.
func NewRetryEmbedder(inner Embedder, cfg RetryConfig, log *slog.Logger) *RetryEmbedder {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryEmbedder{inner: inner, cfg: cfg, log: log}
}

// Embed delegates to the wrapped Embedder, retrying transient provider
// faults. A terminal fault, context cancellation, or retry exhaustion is
// returned to the caller.
func (r *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := r.cfg.InitialInterval

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		vecs, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}

		wait := jittered(delay, r.cfg.Jitter)
		r.log.Warn("embedder: transient provider fault, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("embedder: canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}

		delay *= 2
		if delay > r.cfg.MaxInterval {
			delay = r.cfg.MaxInterval
		}
	}

	return nil, fmt.Errorf("embedder: giving up after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

// jittered spreads d by ±frac.
func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	spread := 1 - frac + 2*frac*rand.Float64()
	return time.Duration(float64(d) * spread)
}

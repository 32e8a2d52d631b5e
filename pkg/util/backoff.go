package util

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Backoff implements exponential backoff
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	logger *zap.SugaredLogger
}

// NewBackoff creates a new Backoff instance
func NewBackoff(maxRetries int, baseDelay time.Duration) *Backoff {
	return &Backoff{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   30 * time.Second,
		logger:     zap.NewNop().Sugar(),
	}
}

// WithLogger sets the logger used to report retried attempts
func (b *Backoff) WithLogger(logger *zap.SugaredLogger) *Backoff {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Delay returns the wait before the given zero-based retry attempt
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// Retry executes the operation with exponential backoff
func (b *Backoff) Retry(ctx context.Context, op func() error) error {
	var err error
	for i := 0; i <= b.MaxRetries; i++ {
		if err = op(); err == nil {
			return nil
		}

		if i == b.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Delay(i)):
			b.logger.Debugw("retrying after error", "err", err, "attempt", i+1, "max", b.MaxRetries)
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", b.MaxRetries, err)
}

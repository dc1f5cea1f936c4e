// Package retry runs remote calls with a bounded number of attempts and a
// linearly growing pause between them.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffUnit = time.Second
)

// Config controls the attempt ceiling and the backoff step.
type Config struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

// Linear implements backoff.BackOff. The n-th call to NextBackOff returns
// 2*n*Unit, so the pauses run 2, 4, 6... units.
type Linear struct {
	Unit    time.Duration
	retries int
}

// NextBackOff returns the pause before the next attempt.
func (l *Linear) NextBackOff() time.Duration {
	l.retries++
	return time.Duration(2*l.retries) * l.Unit
}

// Reset restarts the sequence.
func (l *Linear) Reset() {
	l.retries = 0
}

// Retrier wraps an operation with bounded linear-backoff retries.
type Retrier struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Retrier, filling zero values with the defaults.
func New(cfg Config, logger *zap.Logger) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = defaultBackoffUnit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{cfg: cfg, logger: logger}
}

// ShouldRetry reports whether err is a transport failure worth another attempt.
// Client timeouts are transport failures; caller cancellation is judged by Do
// from its context, not from the error chain.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, harvest.ErrTransport)
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// ceiling is reached. It returns the number of attempts made and the error of
// the final attempt, unchanged.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error, fields ...zap.Field) (int, error) {
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&Linear{Unit: r.cfg.BackoffUnit}, uint64(r.cfg.MaxAttempts-1)),
		ctx,
	)
	operation := func() error {
		attempts++
		err := op(ctx)
		if err != nil && (ctx.Err() != nil || !ShouldRetry(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		metrics.ObserveRetry()
		logFields := make([]zap.Field, 0, len(fields)+4)
		logFields = append(logFields, fields...)
		logFields = append(logFields,
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
		r.logger.Warn("attempt failed, backing off", logFields...)
	}
	err := backoff.RetryNotify(operation, policy, notify)
	return attempts, err
}

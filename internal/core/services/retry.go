package services

import (
	"context"
	"errors"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// retryPolicy is a bounded retry with exponential backoff, applied
// uniformly at the source access and embedding provider boundaries.
type retryPolicy struct {
	attempts int
	initial  time.Duration
}

var defaultRetry = retryPolicy{attempts: 3, initial: 2 * time.Second}

// isTransient reports whether an error class is worth retrying.
// Extraction and storage failures are handled per file instead.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrSourceAccess) || errors.Is(err, domain.ErrEmbedding)
}

// do runs fn, retrying transient failures with doubling delays. The last
// error is returned when attempts are exhausted or on a non-transient
// failure.
func (p retryPolicy) do(ctx context.Context, op string, fn func() error) error {
	delay := p.initial
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) || attempt == p.attempts {
			return err
		}
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, p.attempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"liquorpos/backend/internal/store"
)

// runTransaction reruns fn from scratch whenever the commit reports a
// conflict, up to maxAttempts. Any other error ends the loop immediately.
// fn must not have side effects outside the transaction.
func (s *Service) runTransaction(ctx context.Context, operation string, fn func(ctx context.Context, tx store.Tx) error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.repo.RunTransaction(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, store.ErrConflict):
			txConflictsTotal.WithLabelValues(operation).Inc()
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug().Err(err).Str("operation", operation).Int("attempt", attempts).Dur("retry_in", next).Msg("transaction conflict, retrying")
		}),
	)
	if err != nil && errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w after %d attempts: %w", ErrTransactionConflict, attempts, err)
	}
	return err
}

func (s *Service) newBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     s.retryInterval,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         20 * s.retryInterval,
	}
}

// finish records the outcome of a sale or void on the span and in metrics.
func (s *Service) finish(span trace.Span, operation string, startedAt time.Time, err error) {
	txDuration.WithLabelValues(operation).Observe(time.Since(startedAt).Seconds())
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	kind := ErrorKind(err)
	operationFailuresTotal.WithLabelValues(operation, kind).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)

	event := s.logger.Warn()
	if kind == KindInternal {
		event = s.logger.Error()
	}
	event.Err(err).Str("operation", operation).Str("error_kind", kind).Msg("operation failed")
}

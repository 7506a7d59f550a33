package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/metrics"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// txRunner выполняет действие одной транзакцией и повторяет его с новым чтением,
// если retryable(err) истинно. Остальные ошибки возвращаются сразу.
type txRunner struct {
	tx          Transactor
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
}

func conflictOnly(err error) bool {
	return errors.Is(err, models.ErrConflict)
}

// raceLike - ошибки, которые обычно означают гонку с другим оператором
func raceLike(err error) bool {
	return errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrPreconditionFailed)
}

func (r txRunner) run(ctx context.Context, action string, log *logrus.Entry, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempts := r.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.baseDelay),
		backoff.WithMaxElapsedTime(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := r.tx.WithinTx(ctx, fn)
		if err == nil || r.retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		metrics.WorkflowRetriesTotal.WithLabelValues(action).Inc()
		log.WithError(err).WithField("attempt", attempt).Warnf("Action failed, re-reading and retrying in %v", wait)
	})

	metrics.WorkflowActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	metrics.WorkflowActionsTotal.WithLabelValues(action, outcome(err)).Inc()
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, models.ErrMissingReference):
		return "missing_reference"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "error"
}

// logFailure пишет ошибку клиента на уровне Warn, ошибку хранилища - на уровне Error
func logFailure(log *logrus.Entry, err error, msg string) {
	if errors.Is(err, models.ErrStoreUnavailable) || outcome(err) == "error" {
		log.WithError(err).Error(msg)
		return
	}
	log.WithError(err).Warn(msg)
}

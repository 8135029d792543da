package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/observability"
	"github.com/sellerdesk/ozon-support/internal/repository"
	"github.com/sellerdesk/ozon-support/internal/worker"
)

const defaultMaxAttempts = 10

// retrier reschedules failed sends and parks them once attempts run out.
type retrier struct {
	queue       worker.Dispatcher
	deadLetters repository.DeadLetterRepository
	maxAttempts int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// reschedule dispatches next after delay. attempts is the number of tries
// made so far, including the failed one. Tasks without a ticket are only
// logged once attempts run out.
func (r retrier) reschedule(ctx context.Context, next worker.Task, attempts int, delay time.Duration, ticketID string, channel domain.TicketType, cause error) error {
	limit := r.maxAttempts
	if limit <= 0 {
		limit = defaultMaxAttempts
	}
	if attempts >= limit {
		letter := &domain.DeadLetter{
			TicketID:  ticketID,
			Channel:   channel,
			Attempts:  attempts,
			LastError: cause.Error(),
		}
		if r.deadLetters != nil && ticketID != "" {
			if err := r.deadLetters.Create(ctx, letter); err != nil {
				r.logger.Error("dead letter not stored", observability.Critical(),
					zap.String("ticket_id", ticketID), zap.Error(err))
				return err
			}
		}
		r.metrics.Inc(observability.CounterDeadLetters)
		r.logger.Error("attempts exhausted", observability.Critical(),
			zap.String("kind", next.Kind()),
			zap.String("ticket_id", ticketID),
			zap.Int("attempts", attempts),
			zap.Error(cause),
		)
		return nil
	}

	r.metrics.Inc(observability.CounterRepliesRetried)
	r.logger.Warn("rescheduled",
		zap.String("kind", next.Kind()),
		zap.String("ticket_id", ticketID),
		zap.Int("attempts", attempts),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	return r.queue.Dispatch(ctx, next, worker.WithDelay(delay))
}

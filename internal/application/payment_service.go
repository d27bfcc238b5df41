package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// PaymentService orchestrates the ingress operations: admitting payments to
// the queue, aggregating the ledger into summaries, and purging state between
// load runs. Forwarding to the processors happens in the worker pool, after
// the submitter has already been answered.
type PaymentService struct {
	queue  PaymentQueue
	ledger LedgerStore
	claims ClaimRegistry
	logger *slog.Logger
}

func NewPaymentService(queue PaymentQueue, ledger LedgerStore, claims ClaimRegistry, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		queue:  queue,
		ledger: ledger,
		claims: claims,
		logger: logger.With("component", "payment_service"),
	}
}

// Submit validates the payment and hands it to the queue. It blocks while the
// queue is full, up to the request deadline carried by ctx.
func (s *PaymentService) Submit(ctx context.Context, payment domain.PaymentRequest) error {
	if err := payment.Validate(); err != nil {
		return NewInvalidInputError(err)
	}

	if err := s.queue.Enqueue(ctx, payment); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return NewTimeoutError(err)
		case errors.Is(err, domain.ErrQueueClosed):
			return NewUnavailableError(err)
		case errors.Is(err, context.Canceled):
			return NewTimeoutError(err)
		default:
			return NewInternalError(err)
		}
	}

	return nil
}

// Summarize aggregates the ledger records whose processedAt falls inside
// [from, to]; nil bounds are unbounded.
func (s *PaymentService) Summarize(ctx context.Context, from, to *time.Time) (domain.Summary, error) {
	records, err := s.ledger.RangeByTime(ctx, from, to)
	if err != nil {
		return domain.Summary{}, NewInternalError(err)
	}

	summary := domain.NewSummary()
	for _, rec := range records {
		summary.Add(rec)
	}

	return summary, nil
}

// Purge wipes the ledger and the idempotency claims. The load-test harness
// calls this between runs.
func (s *PaymentService) Purge(ctx context.Context) error {
	if err := s.ledger.Purge(ctx); err != nil {
		return NewInternalError(err)
	}
	if err := s.claims.PurgeClaims(ctx); err != nil {
		return NewInternalError(err)
	}

	s.logger.Info("ledger and claims purged")
	return nil
}

// Package worker contains the asynchronous half of the gateway: the bounded
// payment queue with its worker pool, and the per-payment selection loop that
// routes each claimed payment to a processor with failover and backoff.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// Selector runs the retry loop for one payment at a time: pick a processor,
// attempt the POST, and fail over, back off or stop according to the outcome.
// A Selector is stateless across payments and shared by every worker.
type Selector struct {
	defaultClient  application.PaymentProcessor
	fallbackClient application.PaymentProcessor
	health         application.HealthReporter
	ledger         application.LedgerStore
	audit          application.AuditSink

	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewSelector(
	defaultClient, fallbackClient application.PaymentProcessor,
	health application.HealthReporter,
	ledger application.LedgerStore,
	audit application.AuditSink,
	cfg config.RetryConfig,
	logger *slog.Logger,
) *Selector {
	return &Selector{
		defaultClient:  defaultClient,
		fallbackClient: fallbackClient,
		health:         health,
		ledger:         ledger,
		audit:          audit,
		maxAttempts:    cfg.MaxAttempts,
		baseDelay:      cfg.BaseDelay,
		logger:         logger.With("component", "selector"),
	}
}

// Process forwards one claimed payment. It returns nil once a processor
// accepted the payment and the ledger holds its record. Rejections and an
// exhausted attempt budget are terminal; the caller has nothing left to do
// but log.
func (s *Selector) Process(ctx context.Context, payment domain.PaymentRequest) error {
	target := domain.ProcessorDefault
	if !s.health.ShouldUseDefault() {
		target = domain.ProcessorFallback
	}
	delay := s.baseDelay

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		requestedAt := time.Now().UTC()

		res := s.client(target).SubmitPayment(ctx, payment, requestedAt)
		switch res.Outcome {
		case application.OutcomeSuccess:
			return s.record(ctx, payment, target, requestedAt)

		case application.OutcomeRejected:
			s.logger.Warn("payment rejected by processor",
				"correlation_id", payment.CorrelationID,
				"processor", target,
				"status", res.Status,
			)
			return fmt.Errorf("%w: %w", domain.ErrPaymentRejected, res.Err)

		case application.OutcomeTimeout:
			// The payment may still land upstream; stay on the same target so
			// a duplicate send hits the processor that already saw it.
			s.health.ReportSlowness(target)
			s.logger.Debug("payment attempt timed out",
				"correlation_id", payment.CorrelationID,
				"processor", target,
				"attempt", attempt,
			)

		default: // OutcomeServerError, OutcomeTransport
			s.health.ReportFailure(target)
			s.logger.Debug("payment attempt failed, failing over",
				"correlation_id", payment.CorrelationID,
				"processor", target,
				"outcome", res.Outcome.String(),
				"attempt", attempt,
				"error", res.Err,
			)
			target = target.Other()
		}

		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	s.logger.Error("payment dropped after exhausting attempts",
		"correlation_id", payment.CorrelationID,
		"amount", payment.Amount.String(),
		"attempts", s.maxAttempts,
	)
	return domain.ErrProcessorsExhausted
}

// record writes the ledger entry for an accepted payment. An append failure
// is surfaced loudly: the claim is already taken, so a lost append is
// permanent.
func (s *Selector) record(ctx context.Context, payment domain.PaymentRequest, used domain.ProcessorID, requestedAt time.Time) error {
	rec := domain.PaymentRecord{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		Processor:     used,
		RequestedAt:   requestedAt,
		ProcessedAt:   time.Now().UTC(),
	}

	if err := s.ledger.Append(ctx, rec); err != nil {
		s.logger.Error("payment processed but not recorded",
			"correlation_id", rec.CorrelationID,
			"amount", rec.Amount.String(),
			"processor", rec.Processor,
			"error", err,
		)
		return fmt.Errorf("record payment %s: %w", rec.CorrelationID, err)
	}

	if s.audit != nil {
		s.audit.Record(rec)
	}

	s.logger.Debug("payment processed",
		"correlation_id", rec.CorrelationID,
		"processor", rec.Processor,
	)
	return nil
}

func (s *Selector) client(p domain.ProcessorID) application.PaymentProcessor {
	if p == domain.ProcessorDefault {
		return s.defaultClient
	}
	return s.fallbackClient
}

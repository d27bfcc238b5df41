package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

const insertPayment = `
	INSERT INTO processed_payments (correlation_id, amount, processor, requested_at, processed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (correlation_id) DO NOTHING`

// AuditTrail copies processed payments into Postgres in batches. Record never
// blocks: when the buffer is full the entry is dropped with a warning and the
// Redis ledger remains authoritative.
type AuditTrail struct {
	pool          *pgxpool.Pool
	buffer        chan domain.PaymentRecord
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

func NewAuditTrail(pool *pgxpool.Pool, cfg config.AuditConfig, logger *slog.Logger) *AuditTrail {
	return &AuditTrail{
		pool:          pool,
		buffer:        make(chan domain.PaymentRecord, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        logger.With("component", "audit"),
	}
}

// Record hands one processed payment to the flusher without waiting on it.
func (a *AuditTrail) Record(rec domain.PaymentRecord) {
	select {
	case a.buffer <- rec:
	default:
		a.logger.Warn("audit buffer full, dropping record",
			"correlation_id", rec.CorrelationID,
		)
	}
}

// Run flushes buffered records whenever a batch fills or the flush interval
// elapses, until ctx is cancelled. Whatever is still buffered at shutdown is
// written in one final flush before Run returns.
func (a *AuditTrail) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.PaymentRecord, 0, a.batchSize)

	for {
		select {
		case <-ctx.Done():
			a.drain(batch)
			return nil
		case rec := <-a.buffer:
			batch = append(batch, rec)
			if len(batch) >= a.batchSize {
				a.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// drain empties the buffer after shutdown and flushes under a fresh deadline,
// since the lifecycle context is already cancelled.
func (a *AuditTrail) drain(batch []domain.PaymentRecord) {
	for {
		select {
		case rec := <-a.buffer:
			batch = append(batch, rec)
		default:
			if len(batch) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.flush(ctx, batch)
			return
		}
	}
}

func (a *AuditTrail) flush(ctx context.Context, batch []domain.PaymentRecord) {
	b := &pgx.Batch{}
	for _, rec := range batch {
		b.Queue(insertPayment,
			rec.CorrelationID,
			rec.Amount.String(),
			string(rec.Processor),
			rec.RequestedAt,
			rec.ProcessedAt,
		)
	}

	if err := a.pool.SendBatch(ctx, b).Close(); err != nil {
		a.logger.Error("audit flush failed", "count", len(batch), "error", err)
		return
	}

	a.logger.Debug("audit records flushed", "count", len(batch))
}

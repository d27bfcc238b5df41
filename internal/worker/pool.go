package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// Processor runs the full selection loop for one claimed payment.
type Processor interface {
	Process(ctx context.Context, payment domain.PaymentRequest) error
}

// Pool owns the bounded payment queue and the workers draining it. The queue
// is the gateway's backpressure mechanism: when it is full, Enqueue blocks
// until a worker frees a slot or the submitter's deadline fires.
type Pool struct {
	queue     chan domain.PaymentRequest
	claims    application.ClaimRegistry
	processor Processor

	workers        int
	processTimeout time.Duration
	logger         *slog.Logger

	// draining closes when shutdown begins: no more admissions, workers
	// finish the queue and exit. cancel aborts in-flight attempts when the
	// drain deadline fires.
	draining     chan struct{}
	shutdownOnce sync.Once
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewPool(cfg config.WorkerConfig, claims application.ClaimRegistry, processor Processor, logger *slog.Logger) *Pool {
	workers := cfg.Count
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Pool{
		queue:          make(chan domain.PaymentRequest, cfg.QueueCapacity),
		claims:         claims,
		processor:      processor,
		workers:        workers,
		processTimeout: cfg.ProcessTimeout,
		draining:       make(chan struct{}),
		logger:         logger.With("component", "worker_pool"),
	}
}

// Start launches the workers. Their in-flight work is bounded by ctx; normal
// shutdown goes through Shutdown instead of cancelling ctx.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info("worker pool started",
		"workers", p.workers,
		"queue_capacity", cap(p.queue),
	)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Enqueue admits one payment. It blocks while the queue is full, up to the
// submitter's deadline, and refuses admissions once shutdown has begun.
func (p *Pool) Enqueue(ctx context.Context, payment domain.PaymentRequest) error {
	select {
	case <-p.draining:
		return domain.ErrQueueClosed
	default:
	}

	select {
	case p.queue <- payment:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.draining:
		return domain.ErrQueueClosed
	}
}

// Shutdown stops admissions and waits for the workers to drain the queue.
// When ctx expires first, in-flight attempts are aborted and whatever is
// still queued is dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() { close(p.draining) })
	p.logger.Info("worker pool draining", "queued", len(p.queue))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stopWorkers()
		p.logger.Info("worker pool drained")
		return nil
	case <-ctx.Done():
		p.stopWorkers()
		<-done
		p.logger.Warn("worker pool drain cut short", "dropped", len(p.queue))
		return ctx.Err()
	}
}

func (p *Pool) stopWorkers() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case payment := <-p.queue:
			p.handle(ctx, payment)
		case <-p.draining:
			p.drain(ctx)
			return
		}
	}
}

// drain empties the queue after shutdown begins. A cancelled lifecycle stops
// it immediately, abandoning the rest.
func (p *Pool) drain(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case payment := <-p.queue:
			p.handle(ctx, payment)
		default:
			return
		}
	}
}

// handle processes one dequeued payment: win the claim, then run the
// selection loop under the per-payment budget. Everything that goes wrong
// past this point is logged, never returned — the submitter was answered
// long ago.
func (p *Pool) handle(ctx context.Context, payment domain.PaymentRequest) {
	ctx, cancel := context.WithTimeout(ctx, p.processTimeout)
	defer cancel()

	won, err := p.claims.TryClaim(ctx, payment.CorrelationID)
	if err != nil {
		// Without the claim verdict the payment cannot safely be forwarded;
		// dropping it preserves at-most-once.
		p.logger.Error("claim check failed, dropping payment",
			"correlation_id", payment.CorrelationID,
			"error", err,
		)
		return
	}
	if !won {
		p.logger.Debug("duplicate submission skipped",
			"correlation_id", payment.CorrelationID,
		)
		return
	}

	if err := p.processor.Process(ctx, payment); err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			p.logger.Warn("payment processing aborted",
				"correlation_id", payment.CorrelationID,
				"error", err,
			)
		case errors.Is(err, domain.ErrPaymentRejected),
			errors.Is(err, domain.ErrProcessorsExhausted):
			// Already logged with context by the selector.
		default:
			p.logger.Error("payment processing failed",
				"correlation_id", payment.CorrelationID,
				"error", err,
			)
		}
	}
}

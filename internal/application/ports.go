package application

import (
	"context"
	"errors"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/google/uuid"
)

// Outcome classifies a single payment attempt against a processor.
type Outcome int

const (
	// OutcomeSuccess: the processor accepted the payment (2xx).
	OutcomeSuccess Outcome = iota
	// OutcomeRejected: semantic refusal (4xx). Terminal, never retried.
	OutcomeRejected
	// OutcomeServerError: upstream failure (5xx or 429). Retryable; the
	// caller should fail over to the other processor.
	OutcomeServerError
	// OutcomeTransport: the request never produced a response. Retryable
	// with failover.
	OutcomeTransport
	// OutcomeTimeout: the attempt deadline fired. Retryable against the
	// same processor; the payment may still have landed upstream.
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeServerError:
		return "server_error"
	case OutcomeTransport:
		return "transport"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProcessorResult carries the classified outcome of one attempt plus the
// detail needed for logging. Status is zero when no response arrived.
type ProcessorResult struct {
	Outcome Outcome
	Status  int
	Err     error
}

// HealthStatus is the body of a processor's health endpoint.
type HealthStatus struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// ErrProbeRateLimited signals that the health endpoint refused the probe
// (HTTP 429). The previous health snapshot must be kept.
var ErrProbeRateLimited = errors.New("health probe rate limited")

// PaymentProcessor is the port for one upstream processor.
type PaymentProcessor interface {
	ID() domain.ProcessorID
	SubmitPayment(ctx context.Context, payment domain.PaymentRequest, requestedAt time.Time) ProcessorResult
	CheckHealth(ctx context.Context) (HealthStatus, error)
}

// LedgerStore is the port for the time-indexed record of processed payments.
type LedgerStore interface {
	Append(ctx context.Context, rec domain.PaymentRecord) error
	// RangeByTime returns records with processedAt inside [from, to], both
	// bounds inclusive; a nil bound is unbounded on that side.
	RangeByTime(ctx context.Context, from, to *time.Time) ([]domain.PaymentRecord, error)
	Purge(ctx context.Context) error
}

// ClaimRegistry is the port for per-payment processing claims.
type ClaimRegistry interface {
	// TryClaim returns true iff this call created the claim. A payment is
	// only forwarded by the caller that won the claim; claims are never
	// released, even when processing fails.
	TryClaim(ctx context.Context, correlationID uuid.UUID) (bool, error)
	PurgeClaims(ctx context.Context) error
}

// HealthReporter exposes routing state to the selection loop.
type HealthReporter interface {
	// ShouldUseDefault reports whether the next attempt should start at the
	// default processor. When both processors fail it still prefers the
	// default, which carries the lower fee.
	ShouldUseDefault() bool
	ReportFailure(p domain.ProcessorID)
	ReportSlowness(p domain.ProcessorID)
}

// PaymentQueue is the port the ingress uses to hand payments to the workers.
type PaymentQueue interface {
	Enqueue(ctx context.Context, payment domain.PaymentRequest) error
}

// AuditSink receives processed payments for out-of-band persistence. It must
// never block the payment flow.
type AuditSink interface {
	Record(rec domain.PaymentRecord)
}

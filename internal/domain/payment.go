// Package domain holds the payment types shared by every layer: the inbound
// request, the ledger record written after a processor accepts a payment, and
// the aggregated summary served back to clients.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers with exact decimal digits, both toward
	// the processors and in summary responses.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProcessorID identifies one of the two upstream payment processors.
type ProcessorID string

const (
	ProcessorDefault  ProcessorID = "default"
	ProcessorFallback ProcessorID = "fallback"
)

// Other returns the opposite processor, used when failing over.
func (p ProcessorID) Other() ProcessorID {
	if p == ProcessorDefault {
		return ProcessorFallback
	}
	return ProcessorDefault
}

// PaymentRequest is the client-submitted payment intent. CorrelationID is the
// client-chosen identity of the payment; Amount is an exact decimal and is
// never coerced through a float.
type PaymentRequest struct {
	CorrelationID uuid.UUID       `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}

func (p PaymentRequest) Validate() error {
	if p.CorrelationID == uuid.Nil {
		return ErrMissingCorrelationID
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// PaymentRecord is the ledger entry for a payment accepted by a processor.
// Processor names the processor that actually returned success.
type PaymentRecord struct {
	CorrelationID uuid.UUID       `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	Processor     ProcessorID     `json:"processor"`
	RequestedAt   time.Time       `json:"requestedAt"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

// ProcessorSummary aggregates the recorded payments routed to one processor.
type ProcessorSummary struct {
	TotalRequests int64           `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// Summary is the per-processor aggregation served by the summary endpoint.
type Summary struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}

// NewSummary returns a Summary with explicit zero totals so an empty range
// still serializes as 0 rather than null.
func NewSummary() Summary {
	return Summary{
		Default:  ProcessorSummary{TotalAmount: decimal.Zero},
		Fallback: ProcessorSummary{TotalAmount: decimal.Zero},
	}
}

// Add folds one ledger record into the summary.
func (s *Summary) Add(rec PaymentRecord) {
	if rec.Processor == ProcessorFallback {
		s.Fallback.TotalRequests++
		s.Fallback.TotalAmount = s.Fallback.TotalAmount.Add(rec.Amount)
		return
	}
	s.Default.TotalRequests++
	s.Default.TotalAmount = s.Default.TotalAmount.Add(rec.Amount)
}

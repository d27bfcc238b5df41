package domain

import "errors"

var (
	// ErrMissingCorrelationID rejects submissions without a usable identity.
	ErrMissingCorrelationID = errors.New("correlationId is required")

	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrPaymentRejected marks a semantic refusal by the upstream processor.
	// The payment is terminal: no retry, no ledger record.
	ErrPaymentRejected = errors.New("payment rejected by processor")

	// ErrProcessorsExhausted marks a payment dropped after every attempt
	// failed against both processors.
	ErrProcessorsExhausted = errors.New("all processor attempts failed")

	// ErrQueueClosed is returned for submissions arriving after shutdown
	// has begun.
	ErrQueueClosed = errors.New("payment queue is closed")
)

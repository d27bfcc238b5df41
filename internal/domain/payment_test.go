package domain_test

import (
	"testing"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRequest_Validate(t *testing.T) {
	valid := domain.PaymentRequest{
		CorrelationID: uuid.New(),
		Amount:        decimal.RequireFromString("19.90"),
	}
	require.NoError(t, valid.Validate())

	missingID := domain.PaymentRequest{Amount: decimal.RequireFromString("10")}
	assert.ErrorIs(t, missingID.Validate(), domain.ErrMissingCorrelationID)

	zeroAmount := domain.PaymentRequest{CorrelationID: uuid.New()}
	assert.ErrorIs(t, zeroAmount.Validate(), domain.ErrInvalidAmount)

	negative := domain.PaymentRequest{
		CorrelationID: uuid.New(),
		Amount:        decimal.RequireFromString("-0.01"),
	}
	assert.ErrorIs(t, negative.Validate(), domain.ErrInvalidAmount)
}

func TestProcessorID_Other(t *testing.T) {
	assert.Equal(t, domain.ProcessorFallback, domain.ProcessorDefault.Other())
	assert.Equal(t, domain.ProcessorDefault, domain.ProcessorFallback.Other())
}

func TestSummary_Add_KeepsExactDecimals(t *testing.T) {
	summary := domain.NewSummary()

	rec := func(processor domain.ProcessorID, amount string) domain.PaymentRecord {
		return domain.PaymentRecord{
			CorrelationID: uuid.New(),
			Amount:        decimal.RequireFromString(amount),
			Processor:     processor,
			RequestedAt:   time.Now().UTC(),
			ProcessedAt:   time.Now().UTC(),
		}
	}

	// 0.1 + 0.2 is the classic float trap; decimal addition must stay exact.
	summary.Add(rec(domain.ProcessorDefault, "0.1"))
	summary.Add(rec(domain.ProcessorDefault, "0.2"))
	summary.Add(rec(domain.ProcessorFallback, "19.90"))

	assert.Equal(t, int64(2), summary.Default.TotalRequests)
	assert.True(t, summary.Default.TotalAmount.Equal(decimal.RequireFromString("0.3")),
		"expected 0.3, got %s", summary.Default.TotalAmount)

	assert.Equal(t, int64(1), summary.Fallback.TotalRequests)
	assert.True(t, summary.Fallback.TotalAmount.Equal(decimal.RequireFromString("19.90")))
}

func TestNewSummary_ZeroTotals(t *testing.T) {
	summary := domain.NewSummary()
	assert.True(t, summary.Default.TotalAmount.IsZero())
	assert.True(t, summary.Fallback.TotalAmount.IsZero())
	assert.Zero(t, summary.Default.TotalRequests)
	assert.Zero(t, summary.Fallback.TotalRequests)
}

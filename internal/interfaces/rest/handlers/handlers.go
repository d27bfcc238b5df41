// Package handlers exposes the gateway's HTTP surface: payment submission,
// the per-processor summary, and the purge hook used between load runs.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// PaymentService is the application surface the HTTP layer drives.
type PaymentService interface {
	Submit(ctx context.Context, payment domain.PaymentRequest) error
	Summarize(ctx context.Context, from, to *time.Time) (domain.Summary, error)
	Purge(ctx context.Context) error
}

type Handlers struct {
	service PaymentService
	logger  *slog.Logger
}

func NewHandlers(service PaymentService, logger *slog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With("component", "http"),
	}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments", h.HandleSubmitPayment)
	mux.HandleFunc("GET /payments-summary", h.HandleSummary)
	mux.HandleFunc("POST /purge-payments", h.HandlePurge)
	mux.HandleFunc("GET /healthz", h.HandleLiveness)
}

// HandleLiveness answers container orchestration probes.
func (h *Handlers) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

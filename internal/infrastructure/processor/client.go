// Package processor implements the HTTP client for the two upstream payment
// processors. Both processors expose the same contract; a Client is bound to
// one base URL and classifies every attempt into an outcome the selection
// loop can act on.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client struct {
	id         domain.ProcessorID
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds the http.Client shared by both processor clients. The
// transport keeps a warm connection pool per host; the client timeout is a
// last-resort bound, per-attempt deadlines come from the caller's context.
func NewHTTPClient(cfg config.ProcessorsConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.ConnTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxConnsPerHost * 2,
			MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func NewClient(id domain.ProcessorID, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		id:         id,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) ID() domain.ProcessorID {
	return c.id
}

// paymentPayload is the upstream payment body. RequestedAt is serialized as
// RFC 3339 UTC by time.Time's marshaler.
type paymentPayload struct {
	CorrelationID uuid.UUID       `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
}

// SubmitPayment posts the payment and classifies the result. It never
// panics and never returns without a classification; the Err field carries
// detail for logging on everything but success.
func (c *Client) SubmitPayment(ctx context.Context, payment domain.PaymentRequest, requestedAt time.Time) application.ProcessorResult {
	body, err := json.Marshal(paymentPayload{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		RequestedAt:   requestedAt.UTC(),
	})
	if err != nil {
		return application.ProcessorResult{
			Outcome: application.OutcomeTransport,
			Err:     fmt.Errorf("marshal payment: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return application.ProcessorResult{
			Outcome: application.OutcomeTransport,
			Err:     fmt.Errorf("build payment request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return application.ProcessorResult{
			Outcome: classifyTransportError(err),
			Err:     &ProcessorError{Processor: c.id, Err: err},
		}
	}
	defer drainAndClose(resp.Body)

	return c.classifyStatus(resp.StatusCode)
}

func (c *Client) classifyStatus(status int) application.ProcessorResult {
	var outcome application.Outcome
	switch {
	case status >= 200 && status < 300:
		return application.ProcessorResult{Outcome: application.OutcomeSuccess, Status: status}
	case status == http.StatusRequestTimeout:
		outcome = application.OutcomeTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		outcome = application.OutcomeServerError
	case status >= 400:
		outcome = application.OutcomeRejected
	default:
		outcome = application.OutcomeServerError
	}

	return application.ProcessorResult{
		Outcome: outcome,
		Status:  status,
		Err:     &ProcessorError{Processor: c.id, Status: status},
	}
}

// CheckHealth probes the processor's health endpoint. A 429 answer returns
// ErrProbeRateLimited so the caller keeps its previous snapshot.
func (c *Client) CheckHealth(ctx context.Context) (application.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/service-health", nil)
	if err != nil {
		return application.HealthStatus{}, fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return application.HealthStatus{}, &ProcessorError{Processor: c.id, Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return application.HealthStatus{}, fmt.Errorf("%s: %w", c.id, application.ErrProbeRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return application.HealthStatus{}, &ProcessorError{Processor: c.id, Status: resp.StatusCode}
	}

	var status application.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return application.HealthStatus{}, fmt.Errorf("decode health response: %w", err)
	}

	return status, nil
}

func classifyTransportError(err error) application.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return application.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return application.OutcomeTimeout
	}
	return application.OutcomeTransport
}

// drainAndClose empties the body so the connection goes back to the pool.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

// Package receipts emails a receipt for every completed order.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/luvoir-pos/internal/domain"
	"github.com/joao-fontenele/luvoir-pos/internal/mailer"
)

var (
	errMailerStatus = errors.New("mailer returned unexpected status")

	// errMailerRejected is a 4xx from the mailer. Resending the same receipt
	// cannot succeed, and the mailer itself is healthy.
	errMailerRejected = errors.New("mailer rejected receipt")
)

// BreakerSettings trips after five consecutive mailer failures and probes
// again after the timeout. Rejected receipts do not count as failures.
func BreakerSettings(logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errMailerRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// DefaultBackOff spaces out resend attempts, capped at one minute.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = time.Minute
	return b
}

type Option func(*Handler)

// WithBackOff replaces the delay policy between resend attempts.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(h *Handler) {
		h.newBackOff = newBackOff
	}
}

type Handler struct {
	mailerURL  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

func NewHandler(mailerURL string, client *http.Client, settings gobreaker.Settings, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		mailerURL:  mailerURL,
		httpClient: client,
		breaker:    gobreaker.NewCircuitBreaker[struct{}](settings),
		newBackOff: DefaultBackOff,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BreakerState reports the mailer circuit breaker state.
func (h *Handler) BreakerState() gobreaker.State {
	return h.breaker.State()
}

// Handle sends the receipt for one order. It keeps resending through the
// circuit breaker until the mailer accepts it or ctx is done, so the
// message stays uncommitted while the mailer is down. Orders without a
// customer email, and receipts the mailer rejects, are acknowledged
// without sending.
func (h *Handler) Handle(ctx context.Context, event domain.OrderCompletedEvent) error {
	if event.CustomerEmail == "" {
		h.logger.Info("skipping receipt without email", "order_id", event.OrderID, "customer_id", event.CustomerID)
		return nil
	}

	h.logger.Info("processing order completed event", "order_id", event.OrderID, "event_id", event.EventID)

	receipt := Receipt(event)
	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			_, err := h.breaker.Execute(func() (struct{}, error) {
				return struct{}{}, h.send(ctx, receipt)
			})
			if errors.Is(err, errMailerRejected) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
		backoff.WithBackOff(h.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			h.logger.Warn("receipt not sent, retrying",
				"error", err,
				"order_id", event.OrderID,
				"retry_in", next,
				"breaker", h.breaker.State().String(),
			)
		}),
	)

	switch {
	case errors.Is(err, errMailerRejected):
		h.logger.Error("receipt rejected by mailer", "error", err, "order_id", event.OrderID, "to", event.CustomerEmail)
		return nil
	case err != nil:
		return fmt.Errorf("send receipt for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("receipt sent", "order_id", event.OrderID, "to", event.CustomerEmail)
	return nil
}

// Receipt renders the email for a completed order.
func Receipt(event domain.OrderCompletedEvent) mailer.SendRequest {
	d := event.OrderDate
	return mailer.SendRequest{
		To:      event.CustomerEmail,
		Subject: "Your receipt for order " + event.OrderID,
		Body: fmt.Sprintf("Hi %s, thank you for your purchase on %d/%d/%d. Order %s total: %s (%s).",
			event.CustomerName, int(d.Month()), d.Day(), d.Year(), event.OrderID, event.Total, event.PaymentMethod),
	}
}

func (h *Handler) send(ctx context.Context, msg mailer.SendRequest) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.mailerURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: %d", errMailerRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: %d", errMailerStatus, resp.StatusCode)
	}
}

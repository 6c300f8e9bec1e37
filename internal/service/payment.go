package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/paymentintent"

	"github.com/forgo/marquee/api/internal/metrics"
)

// ChargeRequest describes one ticket order to be paid
type ChargeRequest struct {
	Amount         float64 // in major currency units
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentProcessor authorizes and voids ticket payments.
// Charge returns the transaction id stored on every ticket of the order.
type PaymentProcessor interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Void(ctx context.Context, transactionID string) error
}

// LocalPaymentProcessor issues local transaction ids without contacting a
// payment provider. Used for free orders and when no provider is configured.
type LocalPaymentProcessor struct{}

// Charge returns a new local transaction id
func (LocalPaymentProcessor) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

// Void is a no-op for local transactions
func (LocalPaymentProcessor) Void(ctx context.Context, transactionID string) error {
	return nil
}

// StripePaymentProcessor creates a Stripe PaymentIntent per order.
// Free orders never reach Stripe.
type StripePaymentProcessor struct {
	client   paymentintent.Client
	currency string
	breaker  *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	local    LocalPaymentProcessor
}

// NewStripePaymentProcessor creates a processor using secretKey
func NewStripePaymentProcessor(secretKey, currency string) *StripePaymentProcessor {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// Card and request errors are the caller's problem, not an outage
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) {
				return stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.RecordBreakerTransition(name, from, to)
		},
	})

	return &StripePaymentProcessor{
		client: paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		currency: strings.ToLower(currency),
		breaker:  breaker,
	}
}

// Charge creates a PaymentIntent for the order amount
func (p *StripePaymentProcessor) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	cents := int64(math.Round(req.Amount * 100))
	if cents <= 0 {
		return p.local.Charge(ctx, req)
	}

	currency := req.Currency
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.client.New(params)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return pi.ID, nil
}

// Void cancels a PaymentIntent; local transaction ids are ignored
func (p *StripePaymentProcessor) Void(ctx context.Context, transactionID string) error {
	if !strings.HasPrefix(transactionID, "pi_") {
		return nil
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	_, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return p.client.Cancel(transactionID, params)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return nil
}

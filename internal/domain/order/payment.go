package order

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
)

const (
	defaultPayerEmail = "default@example.com"
	intentSucceeded   = "succeeded"
)

// PaymentAPI is the part of the backend that settles orders.
type PaymentAPI interface {
	PayOrder(ctx context.Context, orderID string, result shopapi.PaymentResult) (*shopapi.Order, error)
	CreatePaymentIntent(ctx context.Context, req shopapi.PaymentIntentRequest) (*shopapi.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, req shopapi.ConfirmPaymentRequest) error
}

// PaymentStep is the second half of a submission: it turns a created order
// into a paid one.
type PaymentStep interface {
	Pay(ctx context.Context, o *shopapi.Order, payerEmail string) error
	Name() string
}

// MarkPaid marks the order paid without capturing any money. This is the
// test-mode flow.
type MarkPaid struct {
	api PaymentAPI
	now func() time.Time
}

func NewMarkPaid(api PaymentAPI) *MarkPaid {
	return &MarkPaid{api: api, now: time.Now}
}

func (m *MarkPaid) Name() string { return "bypass" }

func (m *MarkPaid) Pay(ctx context.Context, o *shopapi.Order, payerEmail string) error {
	_, err := m.api.PayOrder(ctx, o.ID, shopapi.PaymentResult{
		ID:         "bypass-" + o.ID,
		Status:     "COMPLETED",
		UpdateTime: m.now().UTC().Format(time.RFC3339),
		Payer:      &shopapi.Payer{EmailAddress: payerOrDefault(payerEmail)},
	})
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	return nil
}

// Confirmation is what the payment processor reports for an intent.
type Confirmation struct {
	ID      string
	Status  string
	Created int64
}

// Confirmer completes a payment intent with the processor, e.g. by
// collecting card details from the user.
type Confirmer interface {
	Confirm(ctx context.Context, intent shopapi.PaymentIntent, amount decimal.Decimal) (*Confirmation, error)
}

// AutoConfirmer approves every intent, as a processor does for test cards.
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(ctx context.Context, intent shopapi.PaymentIntent, amount decimal.Decimal) (*Confirmation, error) {
	return &Confirmation{ID: intent.PaymentIntentID, Status: intentSucceeded, Created: time.Now().Unix()}, nil
}

// IntentPayment runs a payment-intent flow: create the intent, let the
// processor confirm it, tell the backend, then record the payment result
// on the order.
type IntentPayment struct {
	api       PaymentAPI
	confirmer Confirmer
}

func NewIntentPayment(api PaymentAPI, confirmer Confirmer) *IntentPayment {
	if confirmer == nil {
		confirmer = AutoConfirmer{}
	}
	return &IntentPayment{api: api, confirmer: confirmer}
}

func (p *IntentPayment) Name() string { return "intent" }

func (p *IntentPayment) Pay(ctx context.Context, o *shopapi.Order, payerEmail string) error {
	intent, err := p.api.CreatePaymentIntent(ctx, shopapi.PaymentIntentRequest{OrderID: o.ID, Amount: o.TotalPrice})
	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	conf, err := p.confirmer.Confirm(ctx, *intent, o.TotalPrice)
	if err != nil {
		return fmt.Errorf("payment confirmation failed: %w", err)
	}
	if conf.Status != intentSucceeded {
		return fmt.Errorf("%w: status %q", ErrPaymentDeclined, conf.Status)
	}

	if err := p.api.ConfirmPayment(ctx, shopapi.ConfirmPaymentRequest{OrderID: o.ID, PaymentIntentID: conf.ID}); err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	_, err = p.api.PayOrder(ctx, o.ID, shopapi.PaymentResult{
		ID:         conf.ID,
		Status:     conf.Status,
		UpdateTime: strconv.FormatInt(conf.Created, 10),
		Payer:      &shopapi.Payer{EmailAddress: payerOrDefault(payerEmail)},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentNotRecorded, err)
	}
	return nil
}

func payerOrDefault(email string) string {
	if email == "" {
		return defaultPayerEmail
	}
	return email
}

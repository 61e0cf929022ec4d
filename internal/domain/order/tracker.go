package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/journal"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Summary is one row of the order history.
type Summary struct {
	ID             string
	CreatedAt      time.Time
	Total          decimal.Decimal
	Items          int
	PaymentStatus  string
	DeliveryStatus string
}

// Detail is a backend order with the state the client derives from it.
type Detail struct {
	Receipt Receipt
	Order   *shopapi.Order
}

// Tracker reads orders back from the backend so the user always sees the
// recorded state, and retries payment for orders left unpaid.
type Tracker struct {
	api     Backend
	session Session
	payment PaymentStep
	journal journal.Publisher
	kv      store.KV
	log     logrus.FieldLogger

	mu     sync.Mutex
	loaded bool
	failed map[string]bool
}

func newTracker(api Backend, sess Session, payment PaymentStep, pub journal.Publisher, kv store.KV, log logrus.FieldLogger) *Tracker {
	return &Tracker{
		api:     api,
		session: sess,
		payment: payment,
		journal: pub,
		kv:      kv,
		log:     log,
		failed:  make(map[string]bool),
	}
}

// Track fetches the order and derives its state.
func (t *Tracker) Track(ctx context.Context, orderID string) (*Detail, error) {
	if !t.session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	o, err := t.api.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return &Detail{
		Receipt: Receipt{OrderID: o.ID, Total: o.TotalPrice, State: stateOf(o, t.attempted(ctx, o.ID))},
		Order:   o,
	}, nil
}

// RetryPayment runs the payment step again for an unpaid order. An order
// that is already paid is returned as is.
func (t *Tracker) RetryPayment(ctx context.Context, orderID string) (*Receipt, error) {
	detail, err := t.Track(ctx, orderID)
	if err != nil {
		return nil, err
	}
	receipt := detail.Receipt
	if receipt.State == StatePaid {
		return &receipt, nil
	}
	identity, _ := t.session.Identity()
	return t.pay(ctx, &receipt, detail.Order, identity.Email)
}

// History lists the user's orders, newest as the backend returns them.
func (t *Tracker) History(ctx context.Context) ([]Summary, error) {
	if !t.session.IsAuthenticated() {
		return nil, ErrAuthRequired
	}
	orders, err := t.api.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	out := make([]Summary, 0, len(orders))
	for _, o := range orders {
		items := 0
		for _, item := range o.OrderItems {
			items += item.Quantity
		}
		out = append(out, Summary{
			ID:             o.ID,
			CreatedAt:      o.CreatedAt,
			Total:          o.TotalPrice,
			Items:          items,
			PaymentStatus:  o.PaymentStatus(),
			DeliveryStatus: o.DeliveryStatus(),
		})
	}
	return out, nil
}

// pay runs the payment step and moves the receipt to its outcome.
func (t *Tracker) pay(ctx context.Context, receipt *Receipt, o *shopapi.Order, payerEmail string) (*Receipt, error) {
	log := t.log.WithFields(logrus.Fields{"order_id": o.ID, "payment": t.payment.Name()})

	if err := t.payment.Pay(ctx, o, payerEmail); err != nil {
		log.WithError(err).Error("payment step failed, order left unpaid")
		t.markAttempted(ctx, o.ID, true)
		if receipt.State != StateConfirmationFailed {
			if terr := receipt.transition(StateConfirmationFailed); terr != nil {
				return receipt, terr
			}
		}
		publish(ctx, t.journal, log, o.ID, EventPaymentConfirmationFailed, PaymentConfirmationFailed{
			OrderID:  o.ID,
			Reason:   err.Error(),
			FailedAt: time.Now(),
		})
		return receipt, &PartialFailureError{OrderID: o.ID, Err: err}
	}

	if err := receipt.transition(StatePaid); err != nil {
		return receipt, err
	}
	t.markAttempted(ctx, o.ID, false)
	log.Info("order paid")
	publish(ctx, t.journal, log, o.ID, EventOrderPaid, OrderPaid{
		OrderID: o.ID,
		Method:  t.payment.Name(),
		PaidAt:  time.Now(),
	})
	return receipt, nil
}

func (t *Tracker) attempted(ctx context.Context, orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadFailed(ctx)
	return t.failed[orderID]
}

func (t *Tracker) markAttempted(ctx context.Context, orderID string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loadFailed(ctx)
	if failed == t.failed[orderID] {
		return
	}
	if failed {
		t.failed[orderID] = true
	} else {
		delete(t.failed, orderID)
	}
	t.saveFailed(ctx)
}

// loadFailed merges the marks left by earlier runs. Caller holds t.mu.
func (t *Tracker) loadFailed(ctx context.Context) {
	if t.loaded || t.kv == nil {
		return
	}
	raw, err := t.kv.Get(ctx, store.KeyUnpaidOrders)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		t.log.WithError(err).Warn("failed to read unpaid orders")
		return
	default:
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			t.log.WithError(err).Warn("discarding corrupt unpaid orders")
		}
		for _, id := range ids {
			t.failed[id] = true
		}
	}
	t.loaded = true
}

// saveFailed writes the marks back. Caller holds t.mu.
func (t *Tracker) saveFailed(ctx context.Context) {
	if t.kv == nil {
		return
	}
	if len(t.failed) == 0 {
		if err := t.kv.Delete(ctx, store.KeyUnpaidOrders); err != nil {
			t.log.WithError(err).Warn("failed to clear unpaid orders")
		}
		return
	}
	ids := make([]string, 0, len(t.failed))
	for id := range t.failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		t.log.WithError(err).Warn("failed to encode unpaid orders")
		return
	}
	if err := t.kv.Set(ctx, store.KeyUnpaidOrders, string(data)); err != nil {
		t.log.WithError(err).Warn("failed to save unpaid orders")
	}
}

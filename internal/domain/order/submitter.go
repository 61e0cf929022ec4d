package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/sweetshop-storefront/internal/domain/cart"
	"github.com/example/sweetshop-storefront/internal/domain/session"
	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/journal"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultPaymentMethod = "Stripe"

// Backend is the part of the shop API used for orders.
type Backend interface {
	PaymentAPI
	CreateOrder(ctx context.Context, req shopapi.OrderRequest) (*shopapi.Order, error)
	GetOrder(ctx context.Context, orderID string) (*shopapi.Order, error)
	ListOrders(ctx context.Context) ([]shopapi.Order, error)
}

// Cart is what the submission reads from and clears.
type Cart interface {
	Items() []cart.LineItem
	Total() decimal.Decimal
	Clear(ctx context.Context) error
}

// Session tells whether the user may place orders.
type Session interface {
	IsAuthenticated() bool
	Identity() (session.Identity, bool)
}

type Deps struct {
	Cart          Cart
	Session       Session
	API           Backend
	Payment       PaymentStep
	Journal       journal.Publisher
	Logger        logrus.FieldLogger
	PaymentMethod string
	// KV keeps failed payment marks across runs. Nil keeps them in memory.
	KV            store.KV
}

// Submitter turns the cart into a backend order and pays for it. The two
// backend calls are not atomic: if payment fails the order stays behind
// unpaid and is reported through *PartialFailureError.
type Submitter struct {
	cart          Cart
	session       Session
	api           Backend
	payment       PaymentStep
	journal       journal.Publisher
	log           logrus.FieldLogger
	paymentMethod string
	tracker       *Tracker
}

func NewSubmitter(d Deps) *Submitter {
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Payment == nil {
		d.Payment = NewMarkPaid(d.API)
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = DefaultPaymentMethod
	}
	log := d.Logger.WithField("component", "order")
	s := &Submitter{
		cart:          d.Cart,
		session:       d.Session,
		api:           d.API,
		payment:       d.Payment,
		journal:       d.Journal,
		log:           log,
		paymentMethod: d.PaymentMethod,
	}
	s.tracker = newTracker(d.API, d.Session, d.Payment, d.Journal, d.KV, log)
	return s
}

// Tracker returns the order tracker sharing this submitter's payment step.
func (s *Submitter) Tracker() *Tracker {
	return s.tracker
}

// Validate runs the local checks Submit performs before any network call.
func (s *Submitter) Validate(addr shopapi.ShippingAddress) error {
	if !s.session.IsAuthenticated() {
		return ErrAuthRequired
	}
	if len(s.cart.Items()) == 0 {
		return &ValidationError{EmptyCart: true}
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"address", addr.Address},
		{"city", addr.City},
		{"postalCode", addr.PostalCode},
		{"country", addr.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}
	return nil
}

// Draft builds the order request from a snapshot of the cart.
func (s *Submitter) Draft(addr shopapi.ShippingAddress) shopapi.OrderRequest {
	items := s.cart.Items()
	req := shopapi.OrderRequest{
		OrderItems:      make([]shopapi.OrderItem, 0, len(items)),
		PaymentMethod:   s.paymentMethod,
		ShippingAddress: addr,
	}
	total := decimal.Zero
	for _, item := range items {
		req.OrderItems = append(req.OrderItems, shopapi.OrderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Image:     item.Image,
			Price:     item.Price,
			ProductID: item.ProductID,
		})
		total = total.Add(item.Subtotal())
	}
	req.TotalPrice = total.Round(2)
	return req
}

// Submit places the order and pays for it.
//
// Nothing reaches the backend unless the session is authenticated and the
// draft is valid. A failed order creation leaves the cart untouched. Once
// the order exists the cart is cleared, and a failed payment step returns
// the receipt in ConfirmationFailed together with a *PartialFailureError.
func (s *Submitter) Submit(ctx context.Context, addr shopapi.ShippingAddress) (*Receipt, error) {
	if err := s.Validate(addr); err != nil {
		return nil, err
	}

	req := s.Draft(addr)
	created, err := s.api.CreateOrder(ctx, req)
	if err != nil {
		s.log.WithError(err).Warn("order creation failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	identity, _ := s.session.Identity()
	log := s.log.WithFields(logrus.Fields{"order_id": created.ID, "user_id": identity.UserID})
	log.WithField("total", req.TotalPrice.String()).Info("order created")
	s.publish(ctx, created.ID, EventOrderPlaced, OrderPlaced{
		OrderID:  created.ID,
		UserID:   identity.UserID,
		Lines:    len(req.OrderItems),
		Total:    req.TotalPrice,
		PlacedAt: time.Now(),
	})

	if err := s.cart.Clear(ctx); err != nil {
		log.WithError(err).Warn("order created but the cart could not be cleared from storage")
	}

	if created.TotalPrice.IsZero() {
		created.TotalPrice = req.TotalPrice
	}
	receipt := &Receipt{OrderID: created.ID, Total: created.TotalPrice, State: StateCreated}
	return s.tracker.pay(ctx, receipt, created, identity.Email)
}

func (s *Submitter) publish(ctx context.Context, key, eventType string, data any) {
	publish(ctx, s.journal, s.log, key, eventType, data)
}

func publish(ctx context.Context, pub journal.Publisher, log logrus.FieldLogger, key, eventType string, data any) {
	event, err := journal.NewEvent(eventType, key, data)
	if err != nil {
		log.WithError(err).Warn("failed to encode order event")
		return
	}
	if err := pub.Publish(ctx, key, event); err != nil {
		log.WithError(err).WithField("event", eventType).Warn("failed to publish order event")
	}
}

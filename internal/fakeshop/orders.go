package fakeshop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("no order items")
	ErrMissingShipping   = errors.New("shipping address is incomplete")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid  = errors.New("order is already paid")
	ErrOrderNotPaid      = errors.New("order must be paid before delivery")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrFaultInjected     = errors.New("service unavailable")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusDelivered},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// Order is the backend's record of a placed order.
type Order struct {
	ID              string
	UserID          string
	Items           []shopapi.OrderItem
	ShippingAddress shopapi.ShippingAddress
	PaymentMethod   string
	Total           decimal.Decimal
	Status          Status
	PaymentResult   *shopapi.PaymentResult
	CreatedAt       time.Time
	PaidAt          *time.Time
	DeliveredAt     *time.Time
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case (o.Status == StatusPaid || o.Status == StatusDelivered) && target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && target == StatusDelivered:
		return ErrOrderNotPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// Wire renders the order in the REST shape.
func (o *Order) Wire() shopapi.Order {
	paymentStatus := shopapi.PaymentPending
	delivery := shopapi.DeliveryPending
	switch o.Status {
	case StatusPaid:
		paymentStatus, delivery = shopapi.PaymentCompleted, shopapi.DeliveryConfirmed
	case StatusDelivered:
		paymentStatus, delivery = shopapi.PaymentCompleted, shopapi.DeliveryDelivered
	case StatusCancelled:
		delivery = string(StatusCancelled)
	}
	return shopapi.Order{
		ID:               o.ID,
		User:             o.UserID,
		OrderItems:       append([]shopapi.OrderItem(nil), o.Items...),
		ShippingAddress:  o.ShippingAddress,
		PaymentMethod:    o.PaymentMethod,
		TotalPrice:       o.Total,
		IsPaid:           o.PaidAt != nil,
		PaidAt:           o.PaidAt,
		IsDelivered:      o.DeliveredAt != nil,
		DeliveredAt:      o.DeliveredAt,
		CreatedAt:        o.CreatedAt,
		Status:           delivery,
		PaymentStatusRaw: paymentStatus,
	}
}

// StockError names the product that could not be covered.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, %d available", e.Name, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// PlaceOrder validates the request and, in one critical section, checks
// every line against stock and decrements it. Either all lines are taken
// or none are. Prices come from the catalog, not from the request.
func (s *Shop) PlaceOrder(userID string, req shopapi.OrderRequest) (*Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, ErrEmptyOrder
	}
	a := req.ShippingAddress
	for _, v := range []string{a.Address, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(v) == "" {
			return nil, ErrMissingShipping
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults.FailCreateOrder {
		return nil, ErrFaultInjected
	}

	// Merge repeated products so the floor check sees the full demand.
	demand := make(map[string]int)
	for _, item := range req.OrderItems {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if _, ok := s.products[item.ProductID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		demand[item.ProductID] += item.Quantity
	}
	for id, qty := range demand {
		p := s.products[id]
		if qty > p.CountInStock {
			return nil, &StockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.CountInStock}
		}
	}
	for id, qty := range demand {
		s.products[id].CountInStock -= qty
	}

	items := make([]shopapi.OrderItem, 0, len(req.OrderItems))
	total := decimal.Zero
	for _, item := range req.OrderItems {
		p := s.products[item.ProductID]
		line := shopapi.OrderItem{
			Name:      p.Name,
			Quantity:  item.Quantity,
			Image:     p.Image,
			Price:     p.Price,
			ProductID: p.ID,
		}
		items = append(items, line)
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Total:           total.Round(2),
		Status:          StatusPending,
		CreatedAt:       s.now(),
	}
	s.orders[o.ID] = o
	s.byUser[userID] = append(s.byUser[userID], o.ID)
	return o, nil
}

// order returns the user's order; callers hold mu.
func (s *Shop) order(userID, orderID string) (*Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Shop) Order(userID, orderID string) (shopapi.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(userID, orderID)
	if err != nil {
		return shopapi.Order{}, err
	}
	return o.Wire(), nil
}

// Orders lists the user's orders, newest first.
func (s *Shop) Orders(userID string) []shopapi.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.sortedOrderIDs(userID)
	out := make([]shopapi.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.orders[id].Wire())
	}
	return out
}

// Pay marks the order paid with the processor's result.
func (s *Shop) Pay(userID, orderID string, result shopapi.PaymentResult) (shopapi.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults.FailPay {
		return shopapi.Order{}, ErrFaultInjected
	}
	o, err := s.order(userID, orderID)
	if err != nil {
		return shopapi.Order{}, err
	}
	if !o.CanTransitionTo(StatusPaid) {
		return shopapi.Order{}, o.transitionError(StatusPaid)
	}
	now := s.now()
	o.Status = StatusPaid
	o.PaidAt = &now
	o.PaymentResult = &result
	return o.Wire(), nil
}

// Deliver marks a paid order delivered.
func (s *Shop) Deliver(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !o.CanTransitionTo(StatusDelivered) {
		return o.transitionError(StatusDelivered)
	}
	now := s.now()
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}

// Cancel cancels a pending order and puts its stock back.
func (s *Shop) Cancel(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !o.CanTransitionTo(StatusCancelled) {
		return o.transitionError(StatusCancelled)
	}
	for _, item := range o.Items {
		if p, ok := s.products[item.ProductID]; ok {
			p.CountInStock += item.Quantity
		}
	}
	o.Status = StatusCancelled
	return nil
}

type intent struct {
	ID        string
	OrderID   string
	Amount    decimal.Decimal
	Confirmed bool
}

// CreateIntent opens a payment intent for an unpaid order.
func (s *Shop) CreateIntent(userID string, req shopapi.PaymentIntentRequest) (shopapi.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults.FailPaymentIntent {
		return shopapi.PaymentIntent{}, ErrFaultInjected
	}
	o, err := s.order(userID, req.OrderID)
	if err != nil {
		return shopapi.PaymentIntent{}, err
	}
	if !o.CanTransitionTo(StatusPaid) {
		return shopapi.PaymentIntent{}, o.transitionError(StatusPaid)
	}
	in := &intent{ID: "pi_" + strings.ReplaceAll(uuid.New().String(), "-", ""), OrderID: o.ID, Amount: o.Total}
	s.intents[in.ID] = in
	return shopapi.PaymentIntent{ClientSecret: in.ID + "_secret", PaymentIntentID: in.ID}, nil
}

// ConfirmIntent records that the processor captured the intent.
func (s *Shop) ConfirmIntent(userID string, req shopapi.ConfirmPaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[req.PaymentIntentID]
	if !ok || in.OrderID != req.OrderID {
		return ErrIntentNotFound
	}
	if _, err := s.order(userID, in.OrderID); err != nil {
		return err
	}
	in.Confirmed = true
	return nil
}

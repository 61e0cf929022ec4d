package shopapi

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by GET /api/products.
type Product struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	Category     string          `json:"category,omitempty"`
	CountInStock int             `json:"countInStock"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the body of a successful POST /api/users/login.
type LoginResult struct {
	Token   string `json:"token"`
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

type Profile struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Token is only set by profile updates, which reissue the credential.
	Token string `json:"token,omitempty"`
}

type ProfileUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type OrderItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"qty"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	ProductID string          `json:"product"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderRequest is the body of POST /api/orders.
type OrderRequest struct {
	OrderItems      []OrderItem     `json:"orderItems"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

// PaymentResult is the body of PUT /api/orders/:id/pay.
type PaymentResult struct {
	ID         string `json:"id,omitempty"`
	Status     string `json:"status,omitempty"`
	UpdateTime string `json:"update_time,omitempty"`
	Payer      *Payer `json:"payer,omitempty"`
}

type Payer struct {
	EmailAddress string `json:"email_address"`
}

// Order is owned by the backend and read-only here.
type Order struct {
	ID              string          `json:"_id"`
	User            string          `json:"user,omitempty"`
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`

	// Newer backends report explicit statuses; older ones only the flags above.
	Status           string `json:"status,omitempty"`
	PaymentStatusRaw string `json:"paymentStatus,omitempty"`
}

// Payment statuses as shown in order history.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Delivery statuses as shown in order history.
const (
	DeliveryPending   = "pending"
	DeliveryConfirmed = "confirmed"
	DeliveryDelivered = "delivered"
)

// PaymentStatus normalizes the payment state across backend schemas.
func (o Order) PaymentStatus() string {
	if o.PaymentStatusRaw != "" {
		return o.PaymentStatusRaw
	}
	if o.IsPaid {
		return PaymentCompleted
	}
	return PaymentPending
}

// DeliveryStatus normalizes the fulfilment state across backend schemas.
func (o Order) DeliveryStatus() string {
	if o.Status != "" {
		return o.Status
	}
	switch {
	case o.IsDelivered:
		return DeliveryDelivered
	case o.IsPaid:
		return DeliveryConfirmed
	default:
		return DeliveryPending
	}
}

type PaymentIntentRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type ConfirmPaymentRequest struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

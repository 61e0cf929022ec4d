package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced               = "OrderPlaced"
	EventOrderPaid                 = "OrderPaid"
	EventPaymentConfirmationFailed = "PaymentConfirmationFailed"
)

type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Lines    int             `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

type OrderPaid struct {
	OrderID string    `json:"order_id"`
	Method  string    `json:"method"`
	PaidAt  time.Time `json:"paid_at"`
}

type PaymentConfirmationFailed struct {
	OrderID  string    `json:"order_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

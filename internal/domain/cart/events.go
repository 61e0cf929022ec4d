package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventItemAdded           = "ItemAddedToCart"
	EventItemQuantityChanged = "ItemQuantityChanged"
	EventItemRemoved         = "ItemRemovedFromCart"
	EventCartCleared         = "CartCleared"
)

// journalKey keeps all cart events on one partition so they stay ordered.
const journalKey = "cart"

type ItemAddedToCart struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   time.Time       `json:"added_at"`
}

type ItemQuantityChanged struct {
	ProductID string    `json:"product_id"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type ItemRemovedFromCart struct {
	ProductID string    `json:"product_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	Lines     int       `json:"lines"`
	ClearedAt time.Time `json:"cleared_at"`
}

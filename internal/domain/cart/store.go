package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/journal"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidProduct = errors.New("product id is required")
)

// LineItem is one product in the cart. The JSON shape matches what the
// browser storefront keeps under the cartItems key.
type LineItem struct {
	ProductID string          `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"qty"`
}

// Subtotal returns price × quantity for the line.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Gate approves quantity increases against authoritative stock.
type Gate interface {
	CheckCapacity(ctx context.Context, productID string, proposed int) error
}

// Store is the persisted cart. Lines keep insertion order, there is at most
// one line per product and no line ever has a quantity below 1.
type Store struct {
	// writeMu serializes mutations, including the stock check they wait on.
	writeMu sync.Mutex
	mu      sync.RWMutex
	items   []LineItem

	kv      store.KV
	gate    Gate
	journal journal.Publisher
	log     logrus.FieldLogger
}

func NewStore(kv store.KV, gate Gate, pub journal.Publisher, log logrus.FieldLogger) *Store {
	if pub == nil {
		pub = journal.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		kv:      kv,
		gate:    gate,
		journal: pub,
		log:     log.WithField("component", "cart"),
	}
}

// Hydrate replaces the in-memory cart with the stored one. A missing or
// unreadable value yields an empty cart; only a storage failure is returned.
func (s *Store) Hydrate(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := s.kv.Get(ctx, store.KeyCartItems)
	if errors.Is(err, store.ErrNotFound) {
		s.replace(nil)
		return nil
	}
	if errors.Is(err, store.ErrCorrupt) {
		s.log.WithError(err).Warn("stored cart is unreadable, starting empty")
		s.replace(nil)
		return nil
	}
	if err != nil {
		s.replace(nil)
		return fmt.Errorf("failed to load cart: %w", err)
	}

	var stored []LineItem
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.log.WithError(err).Warn("stored cart is not valid JSON, starting empty")
		s.replace(nil)
		return nil
	}

	items := make([]LineItem, 0, len(stored))
	index := make(map[string]int, len(stored))
	for _, item := range stored {
		if item.ProductID == "" || item.Quantity < 1 {
			s.log.WithField("product_id", item.ProductID).Warn("dropping invalid stored cart line")
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(items)
		items = append(items, item)
	}
	s.replace(items)
	return nil
}

// AddOrIncrement adds delta units of product. A resulting quantity below 1
// is ignored. Increases are approved by the gate first; a rejection or a
// failed check leaves the cart untouched and is returned as is.
func (s *Store) AddOrIncrement(ctx context.Context, product shopapi.Product, delta int) error {
	if product.ID == "" {
		return ErrInvalidProduct
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Quantity(product.ID)
	proposed := current + delta
	if proposed < 1 || proposed == current {
		return nil
	}

	if proposed > current {
		if err := s.gate.CheckCapacity(ctx, product.ID, proposed); err != nil {
			return err
		}
	}

	s.mu.Lock()
	i := s.indexOf(product.ID)
	if i < 0 {
		s.items = append(s.items, LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.Image,
			Quantity:  proposed,
		})
	} else {
		s.items[i].Quantity = proposed
	}
	s.mu.Unlock()

	now := time.Now()
	if current == 0 {
		s.publish(ctx, EventItemAdded, ItemAddedToCart{
			ProductID: product.ID,
			Quantity:  proposed,
			Price:     product.Price,
			AddedAt:   now,
		})
	} else {
		s.publish(ctx, EventItemQuantityChanged, ItemQuantityChanged{
			ProductID: product.ID,
			From:      current,
			To:        proposed,
			ChangedAt: now,
		})
	}

	return s.persist(ctx)
}

// Remove deletes the line for productID if present.
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.mu.Unlock()

	s.publish(ctx, EventItemRemoved, ItemRemovedFromCart{ProductID: productID, RemovedAt: time.Now()})
	return s.persist(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	lines := len(s.items)
	s.items = nil
	s.mu.Unlock()

	s.publish(ctx, EventCartCleared, CartCleared{Lines: lines, ClearedAt: time.Now()})
	return s.persist(ctx)
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total is the sum of price × quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count returns the number of units across all lines.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Quantity returns the units of productID in the cart, 0 if absent.
func (s *Store) Quantity(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

// indexOf must be called with mu held.
func (s *Store) indexOf(productID string) int {
	for i, item := range s.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) replace(items []LineItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// persist mirrors the current lines to storage. On failure the in-memory
// cart keeps the mutation and the next successful write catches up.
func (s *Store) persist(ctx context.Context) error {
	items := s.Items()
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, store.KeyCartItems, string(data)); err != nil {
		s.log.WithError(err).Error("failed to persist cart")
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, eventType string, data any) {
	event, err := journal.NewEvent(eventType, journalKey, data)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode cart event")
		return
	}
	if err := s.journal.Publish(ctx, journalKey, event); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("failed to publish cart event")
	}
}

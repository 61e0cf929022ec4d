package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// CapacityError reports a quantity the backend cannot cover.
type CapacityError struct {
	ProductID string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, only %d available", e.ProductID, e.Requested, e.Available)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductReader reads a single catalog entry.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*shopapi.Product, error)
}

// Gate checks proposed cart quantities against the backend's stock count.
// The answer is advisory: stock can change before the order is placed and
// the backend enforces the final decrement.
type Gate struct {
	products ProductReader
	log      logrus.FieldLogger
}

func NewGate(products ProductReader, log logrus.FieldLogger) *Gate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{products: products, log: log.WithField("component", "inventory")}
}

// CheckCapacity returns nil when proposed units of productID are in stock,
// a *CapacityError when they are not, and a wrapped fetch error otherwise.
func (g *Gate) CheckCapacity(ctx context.Context, productID string, proposed int) error {
	if proposed < 1 {
		return ErrInvalidQuantity
	}

	stock, err := g.stock(ctx, productID)
	if err != nil {
		return err
	}
	if proposed > stock {
		g.log.WithFields(logrus.Fields{
			"product_id": productID,
			"requested":  proposed,
			"available":  stock,
		}).Info("quantity rejected")
		return &CapacityError{ProductID: productID, Requested: proposed, Available: stock}
	}
	return nil
}

// Available returns how many more units can be added on top of inCart,
// never less than zero.
func (g *Gate) Available(ctx context.Context, productID string, inCart int) (int, error) {
	stock, err := g.stock(ctx, productID)
	if err != nil {
		return 0, err
	}
	if more := stock - inCart; more > 0 {
		return more, nil
	}
	return 0, nil
}

func (g *Gate) stock(ctx context.Context, productID string) (int, error) {
	p, err := g.products.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to check stock for %s: %w", productID, err)
	}
	return p.CountInStock, nil
}

package storefront

import (
	"context"

	"github.com/example/sweetshop-storefront/internal/domain/cart"
	"github.com/example/sweetshop-storefront/internal/domain/order"
	"github.com/example/sweetshop-storefront/internal/domain/session"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
)

// CartView is the read side of the cart.
type CartView interface {
	Items() []cart.LineItem
	Total() decimal.Decimal
	Count() int
	Quantity(productID string) int
	IsEmpty() bool
}

// CartActions mutates the cart.
type CartActions interface {
	AddOrIncrement(ctx context.Context, product shopapi.Product, delta int) error
	Remove(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
}

// Session is the identity capability handed to pages.
type Session interface {
	IsAuthenticated() bool
	Identity() (session.Identity, bool)
	Login(ctx context.Context, email, password string) (*session.Identity, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*shopapi.Profile, error)
	UpdateProfile(ctx context.Context, name, email, password, confirm string) (*shopapi.Profile, error)
}

// Catalog reads products.
type Catalog interface {
	ListProducts(ctx context.Context) ([]shopapi.Product, error)
	GetProduct(ctx context.Context, id string) (*shopapi.Product, error)
}

// Stock answers "how many more can I add".
type Stock interface {
	Available(ctx context.Context, productID string, inCart int) (int, error)
}

// Orders places and reads orders.
type Orders interface {
	Submit(ctx context.Context, addr shopapi.ShippingAddress) (*order.Receipt, error)
	Validate(addr shopapi.ShippingAddress) error
}

// Tracking reads orders back and retries payment.
type Tracking interface {
	Track(ctx context.Context, orderID string) (*order.Detail, error)
	RetryPayment(ctx context.Context, orderID string) (*order.Receipt, error)
	History(ctx context.Context) ([]order.Summary, error)
}

// Storefront is the capability surface pages are built on. Every field is
// injected; there is no package-level state.
type Storefront struct {
	Cart        CartView
	CartActions CartActions
	Session     Session
	Catalog     Catalog
	Stock       Stock
	Orders      Orders
	Tracking    Tracking
	// BackendURL resolves relative image paths.
	BackendURL string
}

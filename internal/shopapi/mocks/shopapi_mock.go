package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/google/uuid"
)

// MockShopAPI is an in-memory stand-in for the shop backend client.
// Products and orders live in maps; each method records its calls and
// can be forced to fail through the matching *Err field.
type MockShopAPI struct {
	mu       sync.Mutex
	products map[string]shopapi.Product
	catalog  []string
	orders   map[string]shopapi.Order
	order    []string

	// For tracking calls in tests
	GetProductCalls          []string
	LoginCalls               []shopapi.LoginRequest
	GetProfileCalls          int
	UpdateProfileCalls       []shopapi.ProfileUpdate
	CreateOrderCalls         []shopapi.OrderRequest
	PayOrderCalls            []PayOrderCall
	GetOrderCalls            []string
	ListOrdersCalls          int
	CreatePaymentIntentCalls []shopapi.PaymentIntentRequest
	ConfirmPaymentCalls      []shopapi.ConfirmPaymentRequest

	ListProductsErr        error
	GetProductErr          error
	LoginErr               error
	LoginResult            *shopapi.LoginResult
	GetProfileErr          error
	ProfileResult          *shopapi.Profile
	UpdateProfileErr       error
	UpdateProfileResult    *shopapi.Profile
	CreateOrderErr         error
	PayOrderErr            error
	GetOrderErr            error
	ListOrdersErr          error
	CreatePaymentIntentErr error
	ConfirmPaymentErr      error
}

// PayOrderCall records parameters passed to PayOrder
type PayOrderCall struct {
	OrderID string
	Result  shopapi.PaymentResult
}

// NewMockShopAPI creates a mock serving the given products
func NewMockShopAPI(products ...shopapi.Product) *MockShopAPI {
	m := &MockShopAPI{
		products: make(map[string]shopapi.Product),
		orders:   make(map[string]shopapi.Order),
	}
	for _, p := range products {
		m.products[p.ID] = p
		m.catalog = append(m.catalog, p.ID)
	}
	return m
}

// SetStock changes the stock level reported for a product
func (m *MockShopAPI) SetStock(productID string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		m.catalog = append(m.catalog, productID)
	}
	p.ID = productID
	p.CountInStock = count
	m.products[productID] = p
}

// PutOrder seeds an order as if the backend already had it
func (m *MockShopAPI) PutOrder(o shopapi.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		m.order = append(m.order, o.ID)
	}
	m.orders[o.ID] = o
}

// Order returns a stored order
func (m *MockShopAPI) Order(id string) (shopapi.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// NetworkCalls returns the number of calls made to any endpoint
func (m *MockShopAPI) NetworkCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetProductCalls) + len(m.LoginCalls) + m.GetProfileCalls + len(m.UpdateProfileCalls) +
		len(m.CreateOrderCalls) + len(m.PayOrderCalls) + len(m.GetOrderCalls) + m.ListOrdersCalls +
		len(m.CreatePaymentIntentCalls) + len(m.ConfirmPaymentCalls)
}

func (m *MockShopAPI) ListProducts(ctx context.Context) ([]shopapi.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListProductsErr != nil {
		return nil, m.ListProductsErr
	}
	products := make([]shopapi.Product, 0, len(m.products))
	for _, id := range m.catalog {
		products = append(products, m.products[id])
	}
	return products, nil
}

func (m *MockShopAPI) GetProduct(ctx context.Context, id string) (*shopapi.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetProductCalls = append(m.GetProductCalls, id)
	if m.GetProductErr != nil {
		return nil, m.GetProductErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, &shopapi.APIError{Status: 404, Message: "Product not found"}
	}
	return &p, nil
}

func (m *MockShopAPI) Login(ctx context.Context, email, password string) (*shopapi.LoginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoginCalls = append(m.LoginCalls, shopapi.LoginRequest{Email: email, Password: password})
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	if m.LoginResult == nil {
		return nil, &shopapi.APIError{Status: 401, Message: "Invalid email or password"}
	}
	result := *m.LoginResult
	return &result, nil
}

func (m *MockShopAPI) GetProfile(ctx context.Context) (*shopapi.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetProfileCalls++
	if m.GetProfileErr != nil {
		return nil, m.GetProfileErr
	}
	if m.ProfileResult == nil {
		return nil, &shopapi.APIError{Status: 404, Message: "User not found"}
	}
	p := *m.ProfileResult
	return &p, nil
}

func (m *MockShopAPI) UpdateProfile(ctx context.Context, update shopapi.ProfileUpdate) (*shopapi.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateProfileCalls = append(m.UpdateProfileCalls, update)
	if m.UpdateProfileErr != nil {
		return nil, m.UpdateProfileErr
	}
	if m.UpdateProfileResult != nil {
		p := *m.UpdateProfileResult
		return &p, nil
	}
	return &shopapi.Profile{Name: update.Name, Email: update.Email}, nil
}

func (m *MockShopAPI) CreateOrder(ctx context.Context, req shopapi.OrderRequest) (*shopapi.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateOrderCalls = append(m.CreateOrderCalls, req)
	if m.CreateOrderErr != nil {
		return nil, m.CreateOrderErr
	}
	o := shopapi.Order{
		ID:              uuid.New().String(),
		OrderItems:      req.OrderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TotalPrice:      req.TotalPrice,
		CreatedAt:       time.Now(),
	}
	m.orders[o.ID] = o
	m.order = append(m.order, o.ID)
	return &o, nil
}

func (m *MockShopAPI) PayOrder(ctx context.Context, orderID string, result shopapi.PaymentResult) (*shopapi.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PayOrderCalls = append(m.PayOrderCalls, PayOrderCall{OrderID: orderID, Result: result})
	if m.PayOrderErr != nil {
		return nil, m.PayOrderErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, &shopapi.APIError{Status: 404, Message: "Order not found"}
	}
	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	m.orders[orderID] = o
	return &o, nil
}

func (m *MockShopAPI) GetOrder(ctx context.Context, orderID string) (*shopapi.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetOrderCalls = append(m.GetOrderCalls, orderID)
	if m.GetOrderErr != nil {
		return nil, m.GetOrderErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, &shopapi.APIError{Status: 404, Message: "Order not found"}
	}
	return &o, nil
}

func (m *MockShopAPI) ListOrders(ctx context.Context) ([]shopapi.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListOrdersCalls++
	if m.ListOrdersErr != nil {
		return nil, m.ListOrdersErr
	}
	orders := make([]shopapi.Order, 0, len(m.order))
	for _, id := range m.order {
		orders = append(orders, m.orders[id])
	}
	return orders, nil
}

func (m *MockShopAPI) CreatePaymentIntent(ctx context.Context, req shopapi.PaymentIntentRequest) (*shopapi.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatePaymentIntentCalls = append(m.CreatePaymentIntentCalls, req)
	if m.CreatePaymentIntentErr != nil {
		return nil, m.CreatePaymentIntentErr
	}
	n := len(m.CreatePaymentIntentCalls)
	return &shopapi.PaymentIntent{
		ClientSecret:    fmt.Sprintf("pi_%d_secret", n),
		PaymentIntentID: fmt.Sprintf("pi_%d", n),
	}, nil
}

func (m *MockShopAPI) ConfirmPayment(ctx context.Context, req shopapi.ConfirmPaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmPaymentCalls = append(m.ConfirmPaymentCalls, req)
	return m.ConfirmPaymentErr
}

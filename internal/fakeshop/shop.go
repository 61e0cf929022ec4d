// Package fakeshop is an in-memory implementation of the shop's REST API,
// used to run the storefront locally and to test it end to end.
package fakeshop

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/sweetshop-storefront/internal/auth"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("user already exists")
	ErrInvalidCredential = errors.New("invalid email or password")
)

// User is a registered customer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}

// Faults makes selected endpoints fail, to exercise client error paths.
type Faults struct {
	FailCreateOrder   bool
	FailPay           bool
	FailPaymentIntent bool
	FailProducts      bool
}

// Shop holds the catalog, users and orders behind one lock so that stock
// checks and decrements at order creation are atomic.
type Shop struct {
	mu       sync.Mutex
	products map[string]*shopapi.Product
	catalog  []string
	users    map[string]*User // by lower-cased email
	orders   map[string]*Order
	byUser   map[string][]string
	intents  map[string]*intent
	faults   Faults
	now      func() time.Time
}

func New() *Shop {
	return &Shop{
		products: make(map[string]*shopapi.Product),
		users:    make(map[string]*User),
		orders:   make(map[string]*Order),
		byUser:   make(map[string][]string),
		intents:  make(map[string]*intent),
		now:      time.Now,
	}
}

// SetFaults replaces the active fault set.
func (s *Shop) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *Shop) faultSet() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// AddProduct inserts or replaces a catalog entry. An empty ID gets a fresh one.
func (s *Shop) AddProduct(p shopapi.Product) shopapi.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, ok := s.products[p.ID]; !ok {
		s.catalog = append(s.catalog, p.ID)
	}
	s.products[p.ID] = &p
	return p
}

// SetStock changes the stock count of a product.
func (s *Shop) SetStock(productID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.CountInStock = count
	return nil
}

func (s *Shop) Products() []shopapi.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shopapi.Product, 0, len(s.catalog))
	for _, id := range s.catalog {
		out = append(out, *s.products[id])
	}
	return out
}

func (s *Shop) Product(id string) (shopapi.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return shopapi.Product{}, ErrProductNotFound
	}
	return *p, nil
}

// AddUser registers a customer and returns its id.
func (s *Shop) AddUser(name, email, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := s.users[key]; ok {
		return "", ErrEmailTaken
	}
	u := &User{ID: uuid.New().String(), Name: name, Email: email, PasswordHash: hash}
	s.users[key] = u
	return u.ID, nil
}

// Authenticate checks credentials.
func (s *Shop) Authenticate(email, password string) (*User, error) {
	s.mu.Lock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	s.mu.Unlock()
	if !ok || !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredential
	}
	out := *u
	return &out, nil
}

func (s *Shop) userByID(id string) (*User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

// UpdateUser changes a user's profile; an empty password keeps the old one.
func (s *Shop) UpdateUser(id, name, email, password string) (*User, error) {
	var hash string
	if password != "" {
		var err error
		if hash, err = auth.HashPassword(password); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByID(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	if email != "" && !strings.EqualFold(email, u.Email) {
		key := strings.ToLower(email)
		if _, taken := s.users[key]; taken {
			return nil, ErrEmailTaken
		}
		delete(s.users, strings.ToLower(u.Email))
		u.Email = email
		s.users[key] = u
	}
	if name != "" {
		u.Name = name
	}
	if hash != "" {
		u.PasswordHash = hash
	}
	out := *u
	return &out, nil
}

func (s *Shop) User(id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByID(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// SeedCatalog fills the shop with a small sweets catalog.
func (s *Shop) SeedCatalog() {
	seed := []shopapi.Product{
		{ID: "kaju-katli", Name: "Kaju Katli", Description: "Cashew fudge diamonds", Price: decimal.RequireFromString("450.00"), Image: "/uploads/kaju-katli.jpg", Category: "Barfi", CountInStock: 12},
		{ID: "gulab-jamun", Name: "Gulab Jamun", Description: "Milk dumplings in rose syrup", Price: decimal.RequireFromString("220.00"), Image: "/uploads/gulab-jamun.jpg", Category: "Syrup", CountInStock: 30},
		{ID: "rasgulla", Name: "Rasgulla", Description: "Spongy chhena balls", Price: decimal.RequireFromString("180.00"), Image: "/uploads/rasgulla.jpg", Category: "Syrup", CountInStock: 25},
		{ID: "motichoor-laddoo", Name: "Motichoor Laddoo", Description: "Fine boondi laddoos", Price: decimal.RequireFromString("320.50"), Image: "https://cdn.example.com/laddoo.jpg", Category: "Laddoo", CountInStock: 3},
		{ID: "jalebi", Name: "Jalebi", Description: "Crisp saffron spirals", Price: decimal.RequireFromString("150.00"), Image: "/uploads/jalebi.jpg", Category: "Fried", CountInStock: 0},
	}
	for _, p := range seed {
		s.AddProduct(p)
	}
}

// sortedOrderIDs returns the user's order ids, newest first.
func (s *Shop) sortedOrderIDs(userID string) []string {
	ids := append([]string(nil), s.byUser[userID]...)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.orders[ids[i]].CreatedAt.After(s.orders[ids[j]].CreatedAt)
	})
	return ids
}

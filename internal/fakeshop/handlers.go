package fakeshop

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/sweetshop-storefront/internal/auth"
	"github.com/example/sweetshop-storefront/internal/fakeshop/middleware"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	shop       *Shop
	jwtService *auth.JWTService
	log        logrus.FieldLogger
}

func NewHandlers(shop *Shop, jwtService *auth.JWTService, log logrus.FieldLogger) *Handlers {
	return &Handlers{shop: shop, jwtService: jwtService, log: log}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	if h.shop.faultSet().FailProducts {
		h.respondErr(w, ErrFaultInjected)
		return
	}
	respondJSON(w, http.StatusOK, h.shop.Products())
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	if h.shop.faultSet().FailProducts {
		h.respondErr(w, ErrFaultInjected)
		return
	}
	p, err := h.shop.Product(chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// User Handlers

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" {
		respondJSONError(w, "Name and email are required", http.StatusBadRequest)
		return
	}
	id, err := h.shop.AddUser(req.Name, req.Email, req.Password)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	u, err := h.shop.User(id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, u)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req shopapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	u, err := h.shop.Authenticate(req.Email, req.Password)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, u)
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, status int, u *User) {
	token, _, err := h.jwtService.GenerateToken(u.ID, u.Email, u.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, status, shopapi.LoginResult{Token: token, ID: u.ID, Name: u.Name, Email: u.Email})
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.shop.User(middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shopapi.Profile{ID: u.ID, Name: u.Name, Email: u.Email})
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req shopapi.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	u, err := h.shop.UpdateUser(middleware.GetUserID(r.Context()), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	token, _, err := h.jwtService.GenerateToken(u.ID, u.Email, u.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shopapi.Profile{ID: u.ID, Name: u.Name, Email: u.Email, Token: token})
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req shopapi.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	o, err := h.shop.PlaceOrder(middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.log.WithFields(logrus.Fields{"order_id": o.ID, "total": o.Total.String()}).Info("order placed")
	respondJSON(w, http.StatusCreated, o.Wire())
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.shop.Orders(middleware.GetUserID(r.Context())))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.shop.Order(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) PayOrder(w http.ResponseWriter, r *http.Request) {
	var result shopapi.PaymentResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	o, err := h.shop.Pay(middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), result)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.shop.Order(middleware.GetUserID(r.Context()), id); err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.shop.Deliver(id); err != nil {
		h.respondErr(w, err)
		return
	}
	o, _ := h.shop.Order(middleware.GetUserID(r.Context()), id)
	respondJSON(w, http.StatusOK, o)
}

// Payment Handlers

func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req shopapi.PaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	pi, err := h.shop.CreateIntent(middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pi)
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req shopapi.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.shop.ConfirmIntent(middleware.GetUserID(r.Context()), req); err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Payment confirmed"})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondErr maps shop errors to a status and a user-facing message.
func (h *Handlers) respondErr(w http.ResponseWriter, err error) {
	var stockErr *StockError
	switch {
	case errors.As(err, &stockErr):
		respondJSONError(w, stockErr.Name+" is out of stock", http.StatusBadRequest)
	case errors.Is(err, ErrProductNotFound):
		respondJSONError(w, "Product not found", http.StatusNotFound)
	case errors.Is(err, ErrOrderNotFound):
		respondJSONError(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, ErrUserNotFound):
		respondJSONError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, ErrIntentNotFound):
		respondJSONError(w, "Payment intent not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidCredential):
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, ErrEmailTaken):
		respondJSONError(w, "User already exists", http.StatusBadRequest)
	case errors.Is(err, auth.ErrPasswordTooShort):
		respondJSONError(w, "Password must be at least 6 characters", http.StatusBadRequest)
	case errors.Is(err, auth.ErrPasswordTooLong):
		respondJSONError(w, "Password is too long", http.StatusBadRequest)
	case errors.Is(err, ErrEmptyOrder):
		respondJSONError(w, "No order items", http.StatusBadRequest)
	case errors.Is(err, ErrMissingShipping), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrOrderAlreadyPaid), errors.Is(err, ErrOrderNotPaid),
		errors.Is(err, ErrOrderCancelled), errors.Is(err, ErrInvalidStatus):
		respondJSONError(w, capitalize(err.Error()), http.StatusBadRequest)
	case errors.Is(err, ErrFaultInjected):
		respondJSONError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.log.WithError(err).Error("unhandled error")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

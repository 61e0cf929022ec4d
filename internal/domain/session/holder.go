package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/sweetshop-storefront/internal/auth"
	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/sirupsen/logrus"
)

const (
	defaultLoginMessage   = "Login failed. Please check your credentials."
	defaultProfileMessage = "Failed to update profile."
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrPasswordMismatch = errors.New("new passwords do not match")
)

// Identity is the minimal user description carried by a session.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// LoginError carries a message fit to show the user.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// Backend is the slice of the shop API the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*shopapi.LoginResult, error)
	GetProfile(ctx context.Context) (*shopapi.Profile, error)
	UpdateProfile(ctx context.Context, update shopapi.ProfileUpdate) (*shopapi.Profile, error)
}

// Holder keeps the bearer token and the identity decoded from it. It is
// either anonymous (no token) or authenticated; nothing in between is
// ever observable.
type Holder struct {
	mu       sync.RWMutex
	token    string
	identity *Identity

	kv  store.KV
	api Backend
	log logrus.FieldLogger
	now func() time.Time
}

func NewHolder(kv store.KV, api Backend, log logrus.FieldLogger) *Holder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Holder{
		kv:  kv,
		api: api,
		log: log.WithField("component", "session"),
		now: time.Now,
	}
}

// Hydrate restores a session from the stored token. A token that cannot be
// decoded or has expired is deleted and the holder stays anonymous. Only a
// storage read failure is returned, and the holder is anonymous then too.
func (h *Holder) Hydrate(ctx context.Context) error {
	h.clear()

	token, err := h.kv.Get(ctx, store.KeyUserToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrCorrupt) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	var claims *auth.Claims
	if err == nil {
		claims, err = auth.Decode(token, h.now())
	}
	if err != nil {
		h.log.WithError(err).Warn("discarding stored token")
		if delErr := h.kv.Delete(ctx, store.KeyUserToken); delErr != nil {
			h.log.WithError(delErr).Warn("failed to delete stored token")
		}
		return nil
	}

	h.set(token, &Identity{UserID: claims.Subject(), Name: claims.Name, Email: claims.Email})
	return nil
}

// Login exchanges credentials for a token. Any failure leaves the holder
// exactly as it was and is reported as a *LoginError.
func (h *Holder) Login(ctx context.Context, email, password string) (*Identity, error) {
	result, err := h.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, &LoginError{Message: shopapi.Message(err, defaultLoginMessage), Err: err}
	}

	claims, err := auth.Decode(result.Token, h.now())
	if err != nil {
		h.log.WithError(err).Error("backend issued an unusable token")
		return nil, &LoginError{Message: defaultLoginMessage, Err: err}
	}

	if err := h.kv.Set(ctx, store.KeyUserToken, result.Token); err != nil {
		h.log.WithError(err).Error("failed to persist token")
		return nil, &LoginError{Message: defaultLoginMessage, Err: err}
	}

	identity := &Identity{
		UserID: claims.Subject(),
		Name:   firstNonEmpty(result.Name, claims.Name),
		Email:  firstNonEmpty(result.Email, claims.Email),
	}
	h.set(result.Token, identity)
	h.log.WithField("user_id", identity.UserID).Info("logged in")

	out := *identity
	return &out, nil
}

// Logout forgets the session. Calling it while anonymous is a no-op apart
// from the storage delete.
func (h *Holder) Logout(ctx context.Context) error {
	h.clear()
	if err := h.kv.Delete(ctx, store.KeyUserToken); err != nil {
		return fmt.Errorf("failed to delete stored token: %w", err)
	}
	return nil
}

// Token returns the bearer token, empty when anonymous.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Identity returns a copy of the current identity, or false when anonymous.
func (h *Holder) Identity() (Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.identity == nil {
		return Identity{}, false
	}
	return *h.identity, true
}

func (h *Holder) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != ""
}

// Profile reads the signed-in user's profile.
func (h *Holder) Profile(ctx context.Context) (*shopapi.Profile, error) {
	if !h.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.api.GetProfile(ctx)
}

// UpdateProfile saves name and email, and the password when one is given.
// The backend reissues the token, which replaces the stored one.
func (h *Holder) UpdateProfile(ctx context.Context, name, email, password, confirm string) (*shopapi.Profile, error) {
	if !h.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	profile, err := h.api.UpdateProfile(ctx, shopapi.ProfileUpdate{Name: name, Email: email, Password: password})
	if err != nil {
		return nil, &LoginError{Message: shopapi.Message(err, defaultProfileMessage), Err: err}
	}

	h.mu.Lock()
	if profile.Token != "" {
		h.token = profile.Token
	}
	if h.identity != nil {
		h.identity.Name = profile.Name
		h.identity.Email = profile.Email
	}
	token := h.token
	h.mu.Unlock()

	if profile.Token != "" {
		if err := h.kv.Set(ctx, store.KeyUserToken, token); err != nil {
			return profile, fmt.Errorf("profile saved but the new token could not be stored: %w", err)
		}
	}
	return profile, nil
}

func (h *Holder) set(token string, identity *Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.identity = identity
}

func (h *Holder) clear() {
	h.set("", nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

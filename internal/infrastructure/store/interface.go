package store

import (
	"context"
	"errors"
)

// Fixed storage keys shared with the browser build of the storefront.
const (
	KeyCartItems = "cartItems"
	KeyUserToken = "userToken"

	// KeyUnpaidOrders holds ids of orders whose payment step failed.
	KeyUnpaidOrders = "unpaidOrders"
)

// DefaultProfile is used when no storage profile is configured.
const DefaultProfile = "default"

var (
	ErrNotFound = errors.New("key not found")
	ErrCorrupt  = errors.New("stored value is corrupt")
)

// KV is durable client-side storage addressed by fixed keys.
// Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

func profileOrDefault(profile string) string {
	if profile == "" {
		return DefaultProfile
	}
	return profile
}

package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/sweetshop-storefront/internal/domain/inventory"
	"github.com/example/sweetshop-storefront/internal/domain/order"
	"github.com/example/sweetshop-storefront/internal/domain/session"
	"github.com/example/sweetshop-storefront/internal/shopapi"
)

const (
	msgUnexpected        = "An unexpected error occurred."
	msgAuthRequired      = "You must be logged in to proceed to checkout."
	msgOutOfStock        = "This product is currently out of stock."
	msgOrderFailed       = "Failed to create order. Please try again."
	msgPaymentDeclined   = "Payment was not successful. Please try again."
	msgPaymentNotSaved   = "Payment succeeded, but failed to update order status."
	msgPasswordsMismatch = "New passwords do not match."
	msgProfileLoad       = "Failed to fetch profile data. Please log in again."
	msgProductsLoad      = "Failed to fetch products. Please try again later."
	msgOrdersLoad        = "Failed to load orders. Please check your network connection."
	msgOrderLoad         = "Failed to load order details"
	msgRetryHint         = "Run the same command again to retry."
	msgLoginHint         = "Run `storefront login -email <your email>` first."
)

// Message turns an error from any storefront capability into the text
// shown to the user. fallback is used when nothing more specific applies.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var (
		capacity   *inventory.CapacityError
		validation *order.ValidationError
		login      *session.LoginError
	)
	switch {
	case errors.As(err, &capacity):
		if capacity.Available == 0 {
			return msgOutOfStock
		}
		return fmt.Sprintf("Only %d available for this product.", capacity.Available)
	case errors.As(err, &validation):
		if validation.EmptyCart {
			return "Your cart is empty"
		}
		return capitalize(validation.Error()) + "."
	case errors.As(err, &login):
		return login.Message
	case needsLogin(err):
		return msgAuthRequired
	case errors.Is(err, session.ErrPasswordMismatch):
		return msgPasswordsMismatch
	case errors.Is(err, order.ErrPaymentDeclined):
		return msgPaymentDeclined
	case errors.Is(err, shopapi.ErrUnavailable):
		return "The shop is not reachable right now. Please try again later."
	}
	if fallback == "" {
		fallback = msgUnexpected
	}
	return shopapi.Message(err, fallback)
}

// needsLogin reports whether err means the user has to sign in first.
func needsLogin(err error) bool {
	return errors.Is(err, order.ErrAuthRequired) || errors.Is(err, session.ErrNotAuthenticated)
}

// addLimitMessage explains how many more units fit in the cart.
func addLimitMessage(capacity *inventory.CapacityError, inCart int) string {
	more := capacity.Available - inCart
	if more <= 0 {
		if capacity.Available == 0 {
			return msgOutOfStock
		}
		return fmt.Sprintf("You already have all %d available units in your cart.", capacity.Available)
	}
	return fmt.Sprintf("You can only add %d more units to your cart.", more)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

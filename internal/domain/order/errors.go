package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthRequired        = errors.New("you must be logged in to proceed to checkout")
	ErrPaymentConfirmation = errors.New("order created but payment was not confirmed")
	ErrPaymentDeclined     = errors.New("payment was not successful")
	ErrPaymentNotRecorded  = errors.New("payment succeeded but the order could not be updated")
	ErrInvalidTransition   = errors.New("invalid order state transition")
)

// ValidationError lists what has to be fixed before an order can be sent.
type ValidationError struct {
	EmptyCart     bool
	MissingFields []string
}

func (e *ValidationError) Error() string {
	if e.EmptyCart {
		return "your cart is empty"
	}
	return "missing shipping fields: " + strings.Join(e.MissingFields, ", ")
}

// PartialFailureError is returned when the order exists on the backend but
// could not be marked paid. The cart has already been cleared by then.
type PartialFailureError struct {
	OrderID string
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order %s: %v: %v", e.OrderID, ErrPaymentConfirmation, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPaymentConfirmation, e.Err}
}

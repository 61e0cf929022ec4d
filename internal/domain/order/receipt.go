package order

import (
	"fmt"

	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateCreated            State = "created"
	StatePaid               State = "paid"
	StateConfirmationFailed State = "confirmation_failed"
)

// validTransitions defines allowed state transitions
var validTransitions = map[State][]State{
	StateCreated:            {StatePaid, StateConfirmationFailed},
	StateConfirmationFailed: {StatePaid},
	StatePaid:               {}, // terminal state
}

// Receipt is the client's view of a submitted order.
type Receipt struct {
	OrderID string
	Total   decimal.Decimal
	State   State
}

// CanTransitionTo checks if the receipt can move to the target state
func (r *Receipt) CanTransitionTo(target State) bool {
	for _, s := range validTransitions[r.State] {
		if s == target {
			return true
		}
	}
	return false
}

func (r *Receipt) transition(target State) error {
	if !r.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, r.State, target)
	}
	r.State = target
	return nil
}

// stateOf derives the receipt state from the backend's record.
// An unpaid order reads as ConfirmationFailed once the client has given up
// on paying it, otherwise as Created.
func stateOf(o *shopapi.Order, attempted bool) State {
	switch {
	case o.PaymentStatus() == shopapi.PaymentCompleted:
		return StatePaid
	case o.PaymentStatus() == shopapi.PaymentFailed, attempted:
		return StateConfirmationFailed
	default:
		return StateCreated
	}
}

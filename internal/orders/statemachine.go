package orders

import (
	"fmt"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

// next is the single forward step allowed from each state.
var next = map[enums.OrderState]enums.OrderState{
	enums.OrderStateBasket:    enums.OrderStateNew,
	enums.OrderStateNew:       enums.OrderStateConfirmed,
	enums.OrderStateConfirmed: enums.OrderStateAssembled,
	enums.OrderStateAssembled: enums.OrderStateSent,
	enums.OrderStateSent:      enums.OrderStateDelivered,
}

// ValidateTransition reports whether an order may move from one state to
// another. Orders advance one step at a time; any non-terminal order may be
// canceled.
func ValidateTransition(from, to enums.OrderState) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order state").
			WithDetails(map[string][]string{"state": {fmt.Sprintf("%q is not an order state", to)}})
	}
	if from.IsTerminal() {
		return transitionError(from, to, fmt.Sprintf("order is already %s", from))
	}
	if to == enums.OrderStateCanceled || next[from] == to {
		return nil
	}
	return transitionError(from, to, fmt.Sprintf("cannot move order from %s to %s", from, to))
}

// NextState returns the forward step from s, if any.
func NextState(s enums.OrderState) (enums.OrderState, bool) {
	to, ok := next[s]
	return to, ok
}

func transitionError(from, to enums.OrderState, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

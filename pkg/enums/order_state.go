package enums

// OrderState tracks where an order sits in its lifecycle.
type OrderState string

const (
	OrderStateBasket    OrderState = "basket"
	OrderStateNew       OrderState = "new"
	OrderStateConfirmed OrderState = "confirmed"
	OrderStateAssembled OrderState = "assembled"
	OrderStateSent      OrderState = "sent"
	OrderStateDelivered OrderState = "delivered"
	OrderStateCanceled  OrderState = "canceled"
)

var validOrderStates = []OrderState{
	OrderStateBasket,
	OrderStateNew,
	OrderStateConfirmed,
	OrderStateAssembled,
	OrderStateSent,
	OrderStateDelivered,
	OrderStateCanceled,
}

func (s OrderState) String() string { return string(s) }

func (s OrderState) IsValid() bool { return oneOf(s, validOrderStates) }

// IsTerminal reports whether no further transition is possible.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateDelivered || s == OrderStateCanceled
}

func ParseOrderState(value string) (OrderState, error) {
	return parseOneOf("order state", value, validOrderStates)
}

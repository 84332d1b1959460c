package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// UserRegisteredEvent carries what the confirmation mail needs.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	ConfirmToken string    `json:"confirm_token"`
}

// OrderStateChangedEvent is emitted on every order transition out of basket.
type OrderStateChangedEvent struct {
	OrderID uuid.UUID        `json:"order_id"`
	UserID  uuid.UUID        `json:"user_id"`
	Email   string           `json:"email"`
	From    enums.OrderState `json:"from"`
	To      enums.OrderState `json:"to"`
	Total   string           `json:"total"`
}

// CatalogImportedEvent summarises one partner price list import.
type CatalogImportedEvent struct {
	ShopID   uuid.UUID `json:"shop_id"`
	ShopName string    `json:"shop_name"`
	Email    string    `json:"email"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	Stale    int       `json:"stale"`
}

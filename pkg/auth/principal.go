package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Principal is the caller resolved from a public API token.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Type   enums.UserType
}

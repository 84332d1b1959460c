package auth

import (
	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// RegisterRequest is the public sign-up form.
type RegisterRequest struct {
	FirstName string         `json:"first_name" validate:"required,max=150"`
	LastName  string         `json:"last_name" validate:"required,max=150"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required"`
	Company   string         `json:"company" validate:"required,max=40"`
	Position  string         `json:"position" validate:"required,max=40"`
	Type      enums.UserType `json:"type,omitempty" validate:"omitempty,oneof=buyer shop"`
}

// ConfirmRequest activates an account with the mailed key.
type ConfirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

// LoginRequest captures the user credentials sent to the login endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginResponse carries the admin panel JWT and its refresh token.
type AdminLoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Role         string         `json:"role"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest trades a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// User represents the canonical identity entity. Email is the login.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FirstName    string         `gorm:"column:first_name;not null"`
	LastName     string         `gorm:"column:last_name;not null"`
	Company      string         `gorm:"column:company;not null"`
	Position     string         `gorm:"column:position;not null"`
	Type         enums.UserType `gorm:"column:type;type:varchar(16);not null"`
	IsActive     bool           `gorm:"column:is_active;not null"`
	IsStaff      bool           `gorm:"column:is_staff;not null"`
	IsSuperuser  bool           `gorm:"column:is_superuser;not null"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// AuthToken is the opaque bearer token a user presents on customer endpoints.
// One token per user; login returns the existing token when present.
type AuthToken struct {
	Key       string    `gorm:"column:key;type:varchar(64);primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ConfirmEmailToken is a single-use key mailed after registration.
type ConfirmEmailToken struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Key       string    `gorm:"column:key;type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ConfirmEmailToken) TableName() string { return "confirm_email_tokens" }

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Shop is a partner storefront. A user owns at most one shop.
type Shop struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;type:varchar(100);not null;uniqueIndex"`
	URL       *string         `gorm:"column:url"`
	UserID    *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex"`
	State     enums.ShopState `gorm:"column:state;type:varchar(16);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOpen reports whether the shop is accepting orders.
func (s Shop) IsOpen() bool {
	return s.State == enums.ShopStateOpen
}

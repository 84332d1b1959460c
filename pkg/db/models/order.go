package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Order starts life as the user's basket and moves through fulfillment.
type Order struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	ContactID *uuid.UUID       `gorm:"column:contact_id;type:uuid"`
	State     enums.OrderState `gorm:"column:state;type:varchar(16);not null;index"`
	Items     []OrderItem      `gorm:"foreignKey:OrderID"`
	Contact   *Contact         `gorm:"foreignKey:ContactID"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

type OrderItem struct {
	ID            uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID    `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_items_line"`
	ProductInfoID uuid.UUID    `gorm:"column:product_info_id;type:uuid;not null;uniqueIndex:ux_order_items_line"`
	Quantity      int          `gorm:"column:quantity;not null"`
	ProductInfo   *ProductInfo `gorm:"foreignKey:ProductInfoID"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
}

// Contact is a delivery address owned by a user.
type Contact struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	City      string    `gorm:"column:city;type:varchar(50);not null"`
	Street    string    `gorm:"column:street;type:varchar(100);not null"`
	House     string    `gorm:"column:house;type:varchar(15)"`
	Structure string    `gorm:"column:structure;type:varchar(15)"`
	Building  string    `gorm:"column:building;type:varchar(15)"`
	Apartment string    `gorm:"column:apartment;type:varchar(15)"`
	Phone     string    `gorm:"column:phone;type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Category) TableName() string { return "categories" }

// ShopCategory links a category to the shops that sell in it.
type ShopCategory struct {
	ShopID     uuid.UUID `gorm:"column:shop_id;type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;primaryKey"`
}

func (ShopCategory) TableName() string { return "shop_categories" }

type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;type:varchar(200);not null;uniqueIndex:ux_products_name_category"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;not null;uniqueIndex:ux_products_name_category"`
	Category   *Category `gorm:"foreignKey:CategoryID"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProductInfo is the shop-specific catalog row for a product.
// (product, shop, external_id) identifies the row within a shop's feed.
type ProductInfo struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Model      string             `gorm:"column:model;type:varchar(200);not null"`
	ExternalID int64              `gorm:"column:external_id;not null;uniqueIndex:ux_product_infos_row"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_infos_row"`
	ShopID     uuid.UUID          `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:ux_product_infos_row;index"`
	Quantity   int                `gorm:"column:quantity;not null"`
	Price      decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	PriceRRC   decimal.Decimal    `gorm:"column:price_rrc;type:numeric(12,2);not null"`
	Product    *Product           `gorm:"foreignKey:ProductID"`
	Shop       *Shop              `gorm:"foreignKey:ShopID"`
	Parameters []ProductParameter `gorm:"foreignKey:ProductInfoID"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

type Parameter struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name string    `gorm:"column:name;type:varchar(100);not null;uniqueIndex"`
}

// ProductParameter holds one attribute value for a ProductInfo row.
type ProductParameter struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductInfoID uuid.UUID  `gorm:"column:product_info_id;type:uuid;not null;uniqueIndex:ux_product_parameters_pair"`
	ParameterID   uuid.UUID  `gorm:"column:parameter_id;type:uuid;not null;uniqueIndex:ux_product_parameters_pair"`
	Value         string     `gorm:"column:value;type:varchar(200);not null"`
	Parameter     *Parameter `gorm:"foreignKey:ParameterID"`
}

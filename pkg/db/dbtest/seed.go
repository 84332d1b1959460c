package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// SeedUser inserts an active user of the given type.
func SeedUser(t testing.TB, conn *gorm.DB, email string, userType enums.UserType) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", Type: userType, IsActive: true}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedShop inserts an open shop, optionally owned by ownerID.
func SeedShop(t testing.TB, conn *gorm.DB, name string, ownerID *uuid.UUID) *models.Shop {
	t.Helper()
	shop := &models.Shop{Name: name, UserID: ownerID, State: enums.ShopStateOpen}
	if err := conn.Create(shop).Error; err != nil {
		t.Fatalf("seed shop: %v", err)
	}
	return shop
}

// Offer describes one ProductInfo row to seed.
type Offer struct {
	Shop       *models.Shop
	Category   string
	Product    string
	ExternalID int64
	Quantity   int
	Price      string
	Parameters map[string]string
}

// SeedOffer inserts the category, product, parameters and ProductInfo for o,
// reusing existing category/product/parameter rows by name.
func SeedOffer(t testing.TB, conn *gorm.DB, o Offer) *models.ProductInfo {
	t.Helper()
	category := models.Category{Name: o.Category}
	if err := conn.Where(models.Category{Name: o.Category}).FirstOrCreate(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := models.Product{Name: o.Product, CategoryID: category.ID}
	if err := conn.Where(models.Product{Name: o.Product, CategoryID: category.ID}).FirstOrCreate(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	price := decimal.RequireFromString(o.Price)
	info := &models.ProductInfo{
		Model:      o.Product + " model",
		ExternalID: o.ExternalID,
		ProductID:  product.ID,
		ShopID:     o.Shop.ID,
		Quantity:   o.Quantity,
		Price:      price,
		PriceRRC:   price,
	}
	if err := conn.Create(info).Error; err != nil {
		t.Fatalf("seed product info: %v", err)
	}
	for name, value := range o.Parameters {
		param := models.Parameter{Name: name}
		if err := conn.Where(models.Parameter{Name: name}).FirstOrCreate(&param).Error; err != nil {
			t.Fatalf("seed parameter: %v", err)
		}
		if err := conn.Create(&models.ProductParameter{ProductInfoID: info.ID, ParameterID: param.ID, Value: value}).Error; err != nil {
			t.Fatalf("seed product parameter: %v", err)
		}
	}
	return info
}

package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Order, error)
	OrderHasShop(ctx context.Context, orderID, shopID uuid.UUID) (bool, error)
	FindProductInfo(ctx context.Context, productInfoID uuid.UUID) (*models.ProductInfo, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (int64, error)
	DeleteItems(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (int64, error)
	UpdateState(ctx context.Context, orderID uuid.UUID, state enums.OrderState, contactID *uuid.UUID) error
	ContactOwnedBy(ctx context.Context, contactID, userID uuid.UUID) (bool, error)
	FindShopByUser(ctx context.Context, userID uuid.UUID) (*models.Shop, error)
	FindUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

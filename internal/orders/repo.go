package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// withLines preloads everything the order DTO renders.
func withLines(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Contact").
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		Preload("Items.ProductInfo").
		Preload("Items.ProductInfo.Product").
		Preload("Items.ProductInfo.Product.Category").
		Preload("Items.ProductInfo.Shop").
		Preload("Items.ProductInfo.Parameters").
		Preload("Items.ProductInfo.Parameters.Parameter")
}

func (r *repository) FindBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withLines(r.db.WithContext(ctx)).
		Where("user_id = ? AND state = ?", userID, enums.OrderStateBasket).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// LockOrder loads the bare order row under a row lock.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := withLines(r.db.WithContext(ctx)).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := withLines(r.db.WithContext(ctx)).
		Where("user_id = ? AND state <> ?", userID, enums.OrderStateBasket).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// ListByShop returns placed orders with at least one line from the shop.
func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := withLines(r.db.WithContext(ctx)).
		Where("state <> ?", enums.OrderStateBasket).
		Where("id IN (?)", r.shopOrderIDs(ctx, shopID)).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) OrderHasShop(ctx context.Context, orderID, shopID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN product_infos ON product_infos.id = order_items.product_info_id").
		Where("order_items.order_id = ? AND product_infos.shop_id = ?", orderID, shopID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) shopOrderIDs(ctx context.Context, shopID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_items.order_id").
		Joins("JOIN product_infos ON product_infos.id = order_items.product_info_id").
		Where("product_infos.shop_id = ?", shopID)
}

func (r *repository) FindProductInfo(ctx context.Context, productInfoID uuid.UUID) (*models.ProductInfo, error) {
	var info models.ProductInfo
	if err := r.db.WithContext(ctx).Preload("Shop").Where("id = ?", productInfoID).First(&info).Error; err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *repository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND order_id = ?", itemID, orderID).
		Update("quantity", quantity)
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteItems(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND id IN ?", orderID, itemIDs).
		Delete(&models.OrderItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateState(ctx context.Context, orderID uuid.UUID, state enums.OrderState, contactID *uuid.UUID) error {
	updates := map[string]any{"state": state, "updated_at": time.Now().UTC()}
	if contactID != nil {
		updates["contact_id"] = *contactID
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *repository) ContactOwnedBy(ctx context.Context, contactID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ? AND user_id = ?", contactID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindShopByUser(ctx context.Context, userID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("email").Where("id = ?", userID).First(&user).Error; err != nil {
		return "", err
	}
	return user.Email, nil
}

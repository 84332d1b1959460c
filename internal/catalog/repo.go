package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

// Repository reads categories and shop offers.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListCategories pages through categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, params pagination.Params) ([]models.Category, int64, error) {
	q := r.DB(ctx).Model(&models.Category{}).Order("name ASC")
	return repo.Window[models.Category](q, params)
}

// ListProductInfos returns every offer of open shops matching filter, with
// product, category, shop and parameters loaded.
func (r *Repository) ListProductInfos(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error) {
	q := r.DB(ctx).
		Model(&models.ProductInfo{}).
		Joins("JOIN shops ON shops.id = product_infos.shop_id").
		Joins("JOIN products ON products.id = product_infos.product_id").
		Where("shops.state = ?", enums.ShopStateOpen)
	if filter.ShopID != nil {
		q = q.Where("product_infos.shop_id = ?", *filter.ShopID)
	}
	if filter.CategoryID != nil {
		q = q.Where("products.category_id = ?", *filter.CategoryID)
	}

	var rows []models.ProductInfo
	err := withOfferAssociations(q).
		Order("products.name ASC").
		Order("product_infos.id ASC").
		Find(&rows).Error
	return rows, err
}

// FindProductInfo loads one offer with its associations.
func (r *Repository) FindProductInfo(ctx context.Context, id uuid.UUID) (*models.ProductInfo, error) {
	var row models.ProductInfo
	if err := withOfferAssociations(r.DB(ctx)).First(&row, "product_infos.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func withOfferAssociations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Product").
		Preload("Product.Category").
		Preload("Shop").
		Preload("Parameters").
		Preload("Parameters.Parameter")
}

package shops

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

// Repository handles shop persistence.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to shop operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create persists a new shop row.
func (r *Repository) Create(ctx context.Context, shop *models.Shop) error {
	if shop.State == "" {
		shop.State = enums.ShopStateOpen
	}
	return r.DB(ctx).Create(shop).Error
}

// FindByID loads a shop by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.DB(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindByName loads a shop by its unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.DB(ctx).First(&shop, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindByUser returns the shop owned by userID.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.DB(ctx).First(&shop, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// ListOpen pages through shops accepting orders, ordered by name.
func (r *Repository) ListOpen(ctx context.Context, params pagination.Params) ([]models.Shop, int64, error) {
	q := r.DB(ctx).Model(&models.Shop{}).
		Where("state = ?", enums.ShopStateOpen).
		Order("name ASC")
	return repo.Window[models.Shop](q, params)
}

// UpdateState sets the shop's order intake state.
func (r *Repository) UpdateState(ctx context.Context, id uuid.UUID, state enums.ShopState) error {
	return r.DB(ctx).Model(&models.Shop{}).Where("id = ?", id).Update("state", state).Error
}

// Save writes every column of a loaded shop.
func (r *Repository) Save(ctx context.Context, shop *models.Shop) error {
	return r.DB(ctx).Save(shop).Error
}

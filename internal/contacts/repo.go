package contacts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/repo"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// Repository handles contact persistence. Every query is scoped to an owner.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Contact, error) {
	var rows []models.Contact
	err := r.DB(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, contact *models.Contact) error {
	return r.DB(ctx).Create(contact).Error
}

// FindOwned returns gorm.ErrRecordNotFound when the contact is missing or
// belongs to someone else.
func (r *Repository) FindOwned(ctx context.Context, userID, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", id, userID).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *Repository) Save(ctx context.Context, contact *models.Contact) error {
	return r.DB(ctx).Save(contact).Error
}

// DeleteOwned removes the caller's contacts among ids and reports how many went.
func (r *Repository) DeleteOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Contact{})
	return res.RowsAffected, res.Error
}

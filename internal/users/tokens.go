package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

// TokenRepository persists API tokens and email confirmation keys.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetOrCreateAuthToken returns the user's API token, minting one on first use.
func (r *TokenRepository) GetOrCreateAuthToken(ctx context.Context, userID uuid.UUID, keyBytes int) (*models.AuthToken, error) {
	existing, err := r.findAuthTokenByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	key, err := security.GenerateKey(keyBytes)
	if err != nil {
		return nil, err
	}
	token := &models.AuthToken{Key: key, UserID: userID}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		// A concurrent login for the same user won the insert.
		if db.IsUniqueViolation(err, "") {
			return r.findAuthTokenByUser(ctx, userID)
		}
		return nil, err
	}
	return token, nil
}

func (r *TokenRepository) findAuthTokenByUser(ctx context.Context, userID uuid.UUID) (*models.AuthToken, error) {
	var token models.AuthToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// FindAuthToken looks a token up by its key.
func (r *TokenRepository) FindAuthToken(ctx context.Context, key string) (*models.AuthToken, error) {
	var token models.AuthToken
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// CreateConfirmToken stores a fresh confirmation key for userID.
func (r *TokenRepository) CreateConfirmToken(ctx context.Context, userID uuid.UUID, keyBytes int) (*models.ConfirmEmailToken, error) {
	key, err := security.GenerateKey(keyBytes)
	if err != nil {
		return nil, err
	}
	token := &models.ConfirmEmailToken{UserID: userID, Key: key}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// FindConfirmToken loads a confirmation token with a row lock where supported.
func (r *TokenRepository) FindConfirmToken(ctx context.Context, key string) (*models.ConfirmEmailToken, error) {
	var token models.ConfirmEmailToken
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("key = ?", key).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteConfirmToken removes a consumed token. It reports whether a row was
// removed so a concurrent confirm can detect it lost.
func (r *TokenRepository) DeleteConfirmToken(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.ConfirmEmailToken{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

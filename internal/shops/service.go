package shops

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type shopRepository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Shop, error)
	ListOpen(ctx context.Context, params pagination.Params) ([]models.Shop, int64, error)
	UpdateState(ctx context.Context, id uuid.UUID, state enums.ShopState) error
}

// Service exposes shop listing and the partner state toggle.
type Service interface {
	ListOpen(ctx context.Context, params pagination.Params, base *url.URL) (pagination.Page[ShopDTO], error)
	PartnerState(ctx context.Context, userID uuid.UUID) (*ShopDTO, error)
	SetPartnerState(ctx context.Context, userID uuid.UUID, raw string) (*ShopDTO, error)
}

type service struct {
	repo shopRepository
}

// NewService builds a shop service with the provided repository.
func NewService(repo shopRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shop repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListOpen(ctx context.Context, params pagination.Params, base *url.URL) (pagination.Page[ShopDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListOpen(ctx, params)
	if err != nil {
		return pagination.Page[ShopDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}
	out := make([]ShopDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return pagination.NewPage(out, total, params, base), nil
}

func (s *service) PartnerState(ctx context.Context, userID uuid.UUID) (*ShopDTO, error) {
	shop, err := s.ownedShop(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(shop)
	return &dto, nil
}

func (s *service) SetPartnerState(ctx context.Context, userID uuid.UUID, raw string) (*ShopDTO, error) {
	state, err := enums.ParseShopState(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop state").
			WithDetails(map[string][]string{"state": {"must be open or closed"}})
	}
	shop, err := s.ownedShop(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateState(ctx, shop.ID, state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop state")
	}
	shop.State = state
	dto := FromModel(shop)
	return &dto, nil
}

func (s *service) ownedShop(ctx context.Context, userID uuid.UUID) (*models.Shop, error) {
	shop, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shop is linked to this account; import a price list first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
	}
	return shop, nil
}

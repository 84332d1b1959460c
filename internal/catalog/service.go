package catalog

import (
	"context"
	"net/url"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type catalogRepository interface {
	ListCategories(ctx context.Context, params pagination.Params) ([]models.Category, int64, error)
	ListProductInfos(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error)
}

// Service serves the public catalog listings.
type Service interface {
	Categories(ctx context.Context, params pagination.Params, base *url.URL) (pagination.Page[CategoryDTO], error)
	Products(ctx context.Context, filter ProductFilter) ([]ProductInfoDTO, error)
}

type service struct {
	repo catalogRepository
}

func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Categories(ctx context.Context, params pagination.Params, base *url.URL) (pagination.Page[CategoryDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListCategories(ctx, params)
	if err != nil {
		return pagination.Page[CategoryDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, CategoryFromModel(&rows[i]))
	}
	return pagination.NewPage(out, total, params, base), nil
}

func (s *service) Products(ctx context.Context, filter ProductFilter) ([]ProductInfoDTO, error) {
	rows, err := s.repo.ListProductInfos(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductInfoDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ProductInfoFromModel(&rows[i]))
	}
	return out, nil
}

package contacts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

type contactStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) error
	FindOwned(ctx context.Context, userID, id uuid.UUID) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	DeleteOwned(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// Service manages a user's delivery addresses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]ContactDTO, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*ContactDTO, error)
	Update(ctx context.Context, userID uuid.UUID, req UpdateRequest) (*ContactDTO, error)
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type service struct {
	repo contactStore
}

func NewService(repo contactStore) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "contact repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]ContactDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list contacts")
	}
	out := make([]ContactDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (*ContactDTO, error) {
	contact := req.toModel(userID)
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contact")
	}
	dto := FromModel(contact)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, req UpdateRequest) (*ContactDTO, error) {
	contact, err := s.repo.FindOwned(ctx, userID, req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contact")
	}
	req.apply(contact)
	if err := s.repo.Save(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update contact")
	}
	dto := FromModel(contact)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no contacts selected")
	}
	deleted, err := s.repo.DeleteOwned(ctx, userID, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete contacts")
	}
	return deleted, nil
}

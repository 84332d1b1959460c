package contacts

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

type ContactDTO struct {
	ID        uuid.UUID `json:"id"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Structure string    `json:"structure"`
	Building  string    `json:"building"`
	Apartment string    `json:"apartment"`
	Phone     string    `json:"phone"`
}

// CreateRequest carries a new delivery address.
type CreateRequest struct {
	City      string `json:"city" validate:"required,max=50"`
	Street    string `json:"street" validate:"required,max=100"`
	House     string `json:"house" validate:"max=15"`
	Structure string `json:"structure" validate:"max=15"`
	Building  string `json:"building" validate:"max=15"`
	Apartment string `json:"apartment" validate:"max=15"`
	Phone     string `json:"phone" validate:"required,max=20"`
}

// UpdateRequest patches one of the caller's contacts. Nil fields are left alone.
type UpdateRequest struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	City      *string   `json:"city" validate:"omitempty,min=1,max=50"`
	Street    *string   `json:"street" validate:"omitempty,min=1,max=100"`
	House     *string   `json:"house" validate:"omitempty,max=15"`
	Structure *string   `json:"structure" validate:"omitempty,max=15"`
	Building  *string   `json:"building" validate:"omitempty,max=15"`
	Apartment *string   `json:"apartment" validate:"omitempty,max=15"`
	Phone     *string   `json:"phone" validate:"omitempty,min=1,max=20"`
}

// DeleteRequest lists ids as "id1,id2".
type DeleteRequest struct {
	Items string `json:"items" validate:"required"`
}

func FromModel(c *models.Contact) ContactDTO {
	return ContactDTO{
		ID:        c.ID,
		City:      c.City,
		Street:    c.Street,
		House:     c.House,
		Structure: c.Structure,
		Building:  c.Building,
		Apartment: c.Apartment,
		Phone:     c.Phone,
	}
}

func (r CreateRequest) toModel(userID uuid.UUID) *models.Contact {
	return &models.Contact{
		UserID:    userID,
		City:      strings.TrimSpace(r.City),
		Street:    strings.TrimSpace(r.Street),
		House:     strings.TrimSpace(r.House),
		Structure: strings.TrimSpace(r.Structure),
		Building:  strings.TrimSpace(r.Building),
		Apartment: strings.TrimSpace(r.Apartment),
		Phone:     strings.TrimSpace(r.Phone),
	}
}

func (r UpdateRequest) apply(c *models.Contact) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&c.City, r.City)
	set(&c.Street, r.Street)
	set(&c.House, r.House)
	set(&c.Structure, r.Structure)
	set(&c.Building, r.Building)
	set(&c.Apartment, r.Apartment)
	set(&c.Phone, r.Phone)
}

package shops

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

// ShopDTO is the public listing shape.
type ShopDTO struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	URL   *string         `json:"url,omitempty"`
	State enums.ShopState `json:"state"`
}

// StateRequest toggles order intake. Accepts open/closed as well as on/off
// style values.
type StateRequest struct {
	State string `json:"state" validate:"required"`
}

func FromModel(s *models.Shop) ShopDTO {
	return ShopDTO{ID: s.ID, Name: s.Name, URL: s.URL, State: s.State}
}

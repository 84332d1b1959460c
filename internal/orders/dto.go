package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/contacts"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

type OrderItemDTO struct {
	ID          uuid.UUID              `json:"id"`
	ProductInfo catalog.ProductInfoDTO `json:"product_info"`
	Quantity    int                    `json:"quantity"`
}

// OrderDTO is an order (or the basket) with its lines and total.
type OrderDTO struct {
	ID           uuid.UUID            `json:"id"`
	State        enums.OrderState     `json:"state"`
	Dt           time.Time            `json:"dt"`
	TotalSum     decimal.Decimal      `json:"total_sum"`
	Contact      *contacts.ContactDTO `json:"contact"`
	OrderedItems []OrderItemDTO       `json:"ordered_items"`
}

type AddItem struct {
	ProductInfo uuid.UUID `json:"product_info" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
}

// AddItemsRequest is the POST /basket body.
type AddItemsRequest struct {
	Items []AddItem `json:"items" validate:"required,min=1,dive"`
}

type UpdateItem struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemsRequest is the PUT /basket body.
type UpdateItemsRequest struct {
	Items []UpdateItem `json:"items" validate:"required,min=1,dive"`
}

// DeleteItemsRequest lists basket line ids as "id1,id2".
type DeleteItemsRequest struct {
	Items string `json:"items" validate:"required"`
}

// CheckoutRequest turns the basket identified by ID into a new order.
type CheckoutRequest struct {
	ID      uuid.UUID `json:"id" validate:"required"`
	Contact uuid.UUID `json:"contact" validate:"required"`
}

type StateRequest struct {
	State string `json:"state" validate:"required"`
}

// Actor identifies who requested a state change.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// FromModel builds the DTO from an order with Items.ProductInfo associations
// and Contact preloaded. Only lines accepted by keep are included; a nil keep
// includes every line.
func FromModel(o *models.Order, keep func(models.OrderItem) bool) OrderDTO {
	dto := OrderDTO{
		ID:           o.ID,
		State:        o.State,
		Dt:           o.CreatedAt,
		TotalSum:     decimal.Zero,
		OrderedItems: make([]OrderItemDTO, 0, len(o.Items)),
	}
	if o.Contact != nil {
		c := contacts.FromModel(o.Contact)
		dto.Contact = &c
	}
	for _, item := range o.Items {
		if keep != nil && !keep(item) {
			continue
		}
		line := OrderItemDTO{ID: item.ID, Quantity: item.Quantity}
		if item.ProductInfo != nil {
			line.ProductInfo = catalog.ProductInfoFromModel(item.ProductInfo)
			dto.TotalSum = dto.TotalSum.Add(item.ProductInfo.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		dto.OrderedItems = append(dto.OrderedItems, line)
	}
	return dto
}

func orderTotal(o *models.Order) decimal.Decimal {
	return FromModel(o, nil).TotalSum
}

package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ProductDTO names the product a shop row sells.
type ProductDTO struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ShopRefDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ProductParameterDTO struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// ProductInfoDTO is one offer: a product as sold by a given shop.
type ProductInfoDTO struct {
	ID                uuid.UUID             `json:"id"`
	Model             string                `json:"model"`
	ExternalID        int64                 `json:"external_id"`
	Product           ProductDTO            `json:"product"`
	Shop              ShopRefDTO            `json:"shop"`
	Quantity          int                   `json:"quantity"`
	Price             decimal.Decimal       `json:"price"`
	PriceRRC          decimal.Decimal       `json:"price_rrc"`
	ProductParameters []ProductParameterDTO `json:"product_parameters"`
}

// ProductFilter narrows the product listing. Nil fields do not filter.
type ProductFilter struct {
	ShopID     *uuid.UUID
	CategoryID *uuid.UUID
}

func CategoryFromModel(c *models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name}
}

// ProductInfoFromModel expects Product.Category, Shop and Parameters.Parameter
// to be preloaded.
func ProductInfoFromModel(pi *models.ProductInfo) ProductInfoDTO {
	dto := ProductInfoDTO{
		ID:                pi.ID,
		Model:             pi.Model,
		ExternalID:        pi.ExternalID,
		Quantity:          pi.Quantity,
		Price:             pi.Price,
		PriceRRC:          pi.PriceRRC,
		ProductParameters: make([]ProductParameterDTO, 0, len(pi.Parameters)),
	}
	if pi.Product != nil {
		dto.Product.Name = pi.Product.Name
		if pi.Product.Category != nil {
			dto.Product.Category = pi.Product.Category.Name
		}
	}
	if pi.Shop != nil {
		dto.Shop = ShopRefDTO{ID: pi.Shop.ID, Name: pi.Shop.Name}
	}
	for _, pp := range pi.Parameters {
		name := ""
		if pp.Parameter != nil {
			name = pp.Parameter.Name
		}
		dto.ProductParameters = append(dto.ProductParameters, ProductParameterDTO{Parameter: name, Value: pp.Value})
	}
	return dto
}

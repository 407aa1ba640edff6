package products

import "github.com/shopspring/decimal"

type CreateProductRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	Unit     int             `json:"unit" validate:"gte=0"`
	SaleType SaleChannel     `json:"sale_type" validate:"required"`
}

type UpdateProductRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Unit     *int             `json:"unit,omitempty" validate:"omitempty,gte=0"`
	SaleType *SaleChannel     `json:"sale_type,omitempty"`
}

type ListProductsRequest struct {
	SaleType *SaleChannel `json:"sale_type,omitempty"`
	Search   *string      `json:"search,omitempty"`
	Limit    int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int          `json:"offset" validate:"gte=0"`
}

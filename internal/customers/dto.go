package customers

import "github.com/shopspring/decimal"

type CreateCustomerRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Email       *string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string           `json:"phone" validate:"required,e164"`
	Address     *string          `json:"address,omitempty"`
	Class       CustomerClass    `json:"type" validate:"required"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

type UpdateCustomerRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Email       *string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string          `json:"phone,omitempty" validate:"omitempty,e164"`
	Address     *string          `json:"address,omitempty"`
	Class       *CustomerClass   `json:"type,omitempty"`
	Status      *Status          `json:"status,omitempty"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

type ListCustomersRequest struct {
	Class  *CustomerClass `json:"type,omitempty"`
	Status *Status        `json:"status,omitempty"`
	Search *string        `json:"search,omitempty"`
	Limit  int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset int            `json:"offset" validate:"gte=0"`
}

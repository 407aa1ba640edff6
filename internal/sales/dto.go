package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleItemInput is one requested line. UnitPrice overrides the catalog
// price when set, otherwise the product price is snapshotted.
type SaleItemInput struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// PaymentInput is one payment received with the sale.
type PaymentInput struct {
	Method PaymentMethod   `json:"method" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// SettleRequest is the payload for the settlement entry point.
type SettleRequest struct {
	CustomerID     *int64          `json:"customer_id,omitempty"`
	SaleType       SaleType        `json:"sale_type" validate:"required"`
	Items          []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Payments       []PaymentInput  `json:"payments" validate:"omitempty,dive"`
	Discount       decimal.Decimal `json:"discount"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// AddPaymentRequest appends a payment to an existing sale.
type AddPaymentRequest struct {
	Method PaymentMethod   `json:"method" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// UpdateSaleRequest carries a discount correction. Totals and amount due
// are recalculated; stock and credit postings are untouched.
type UpdateSaleRequest struct {
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

// ListSalesRequest filters the sale history. Pending restricts the listing
// to sales with an outstanding amount due.
type ListSalesRequest struct {
	CustomerID *int64     `json:"customer_id,omitempty"`
	SaleType   *SaleType  `json:"sale_type,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Pending    bool       `json:"pending,omitempty"`
	Limit      int        `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int        `json:"offset" validate:"omitempty,min=0"`
}

// StatsRequest bounds the aggregation window for sale statistics.
type StatsRequest struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Stats aggregates the sale history for reporting.
type Stats struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalTransactions int64           `json:"total_transactions"`
	AverageSaleValue  decimal.Decimal `json:"average_sale_value"`
	RetailSales       decimal.Decimal `json:"retail_sales"`
	WholesaleSales    decimal.Decimal `json:"wholesale_sales"`
	CashSales         decimal.Decimal `json:"cash_sales"`
	CreditSales       decimal.Decimal `json:"credit_sales"`
	TotalDiscounts    decimal.Decimal `json:"total_discounts"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

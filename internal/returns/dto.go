package returns

// ReturnItemInput requests one line reversal.
type ReturnItemInput struct {
	SaleItemID int64 `json:"sale_item_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gt=0"`
}

// CreateReturnRequest opens a pending return against a settled sale.
type CreateReturnRequest struct {
	SaleID int64             `json:"sale_id" validate:"required,gt=0"`
	Items  []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
	Reason string            `json:"reason,omitempty"`
}

// DecideReturnRequest carries the approver's notes.
type DecideReturnRequest struct {
	Notes string `json:"notes,omitempty"`
}

// ListReturnsRequest filters the return history.
type ListReturnsRequest struct {
	Status     *Status `json:"status,omitempty"`
	CustomerID *int64  `json:"customer_id,omitempty"`
	Limit      int     `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int     `json:"offset" validate:"omitempty,min=0"`
}

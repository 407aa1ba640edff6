package customers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository abstracts persistence for customers.
type Repository interface {
	Get(ctx context.Context, id int64) (Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
}

// Service coordinates customer onboarding and maintenance. Financial
// fields (balance, total_purchases, last_purchase) are owned by the
// settlement and credit ledger code, never mutated here.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest, createdBy int64) (Customer, error) {
	if !req.Class.Valid() {
		return Customer{}, ErrInvalidClass
	}
	creditLimit := decimal.Zero
	if req.CreditLimit != nil {
		if req.CreditLimit.Sign() < 0 {
			return Customer{}, ErrInvalidCreditLimit
		}
		creditLimit = *req.CreditLimit
	}

	id, err := s.repo.Create(ctx, Customer{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Class:       req.Class,
		Status:      StatusActive,
		CreditLimit: creditLimit,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Customer{}, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Class != nil {
		if !req.Class.Valid() {
			return Customer{}, ErrInvalidClass
		}
		updates["type"] = *req.Class
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Customer{}, ErrInvalidStatus
		}
		updates["status"] = *req.Status
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.Sign() < 0 {
			return Customer{}, ErrInvalidCreditLimit
		}
		updates["credit_limit"] = *req.CreditLimit
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return Customer{}, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.List(ctx, req)
}

// Delete removes a customer. Customers carrying credit or debt cannot be
// deleted until the ledger is settled.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Balance.IsZero() {
		return ErrOutstandingBalance
	}
	return s.repo.Delete(ctx, id)
}

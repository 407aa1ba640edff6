package products

import (
	"context"
	"fmt"
)

// Repository abstracts persistence for the catalog.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
}

// Service coordinates catalog operations.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	if req.Price.Sign() < 0 {
		return Product{}, ErrInvalidPrice
	}
	if req.Unit < 0 {
		return Product{}, ErrInvalidUnit
	}
	if !req.SaleType.Valid() {
		return Product{}, ErrInvalidChannel
	}

	id, err := s.repo.Create(ctx, Product{
		Name:     req.Name,
		Price:    req.Price,
		Unit:     req.Unit,
		SaleType: req.SaleType,
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Product{}, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if req.Price.Sign() < 0 {
			return Product{}, ErrInvalidPrice
		}
		updates["price"] = *req.Price
	}
	if req.Unit != nil {
		if *req.Unit < 0 {
			return Product{}, ErrInvalidUnit
		}
		updates["unit"] = *req.Unit
	}
	if req.SaleType != nil {
		if !req.SaleType.Valid() {
			return Product{}, ErrInvalidChannel
		}
		updates["sale_type"] = *req.SaleType
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return Product{}, fmt.Errorf("update product: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

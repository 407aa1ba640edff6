package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kegline/kegline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLatestBatch(ctx context.Context) (Batch, error)
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error)
	UpdateBatch(ctx context.Context, id int64, updates map[string]any) error
	DeleteBatch(ctx context.Context, id int64) error
	Summary(ctx context.Context) (Summary, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates deliveries and stock queries. Sales and returns
// mutate the ledger inside their own settlement transactions; this service
// owns delivery intake and the read side.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       *LevelCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cache *LevelCache) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, cache: cache}
}

// RecordDelivery appends a new batch to the rolling chain. The new batch
// starts from the previous batch's remaining litres, so the delivery sits
// on top of whatever was left.
func (s *Service) RecordDelivery(ctx context.Context, req RecordDeliveryRequest, actorID int64) (Batch, error) {
	if req.Quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if req.UnitPrice.Sign() < 0 {
		return Batch{}, errors.New("stock: unit price must be >= 0")
	}
	if req.Supplier == "" {
		return Batch{}, errors.New("stock: supplier required")
	}

	insertedKey := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "stock"); err != nil {
			return Batch{}, err
		}
		insertedKey = true
	}

	var batch Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		previousRemaining := 0.0
		latest, err := tx.GetLatestBatchForUpdate(ctx)
		if err != nil && !errors.Is(err, ErrNoBatch) {
			return err
		}
		if err == nil {
			previousRemaining = latest.RemainingStock
		}

		batch = Batch{
			DeliveredQuantity: req.Quantity,
			UnitPrice:         req.UnitPrice,
			Supplier:          req.Supplier,
			CumulativeStock:   previousRemaining + req.Quantity,
			SoldStock:         0,
			CreatedBy:         actorID,
		}
		batch.RemainingStock = batch.CumulativeStock

		id, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		batch.ID = id
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, req.IdempotencyKey)
		}
		return Batch{}, fmt.Errorf("record delivery: %w", err)
	}

	_ = s.cache.Invalidate(ctx)

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:delivery",
			Entity:   "stock_batch",
			EntityID: strconv.FormatInt(batch.ID, 10),
			Meta: map[string]any{
				"quantity": req.Quantity,
				"supplier": req.Supplier,
			},
		})
	}
	return batch, nil
}

// CurrentAvailable returns the remaining litres of the latest batch, 0 when
// the ledger is empty.
func (s *Service) CurrentAvailable(ctx context.Context) (float64, error) {
	if level, ok := s.cache.Get(ctx); ok {
		return level, nil
	}
	latest, err := s.repo.GetLatestBatch(ctx)
	if err != nil {
		if errors.Is(err, ErrNoBatch) {
			return 0, nil
		}
		return 0, err
	}
	_ = s.cache.Set(ctx, latest.RemainingStock)
	return latest.RemainingStock, nil
}

// UnitsAvailableFor converts the current level into whole sellable units
// for a product sized at unit kegs.
func (s *Service) UnitsAvailableFor(ctx context.Context, unit int) (int, error) {
	available, err := s.CurrentAvailable(ctx)
	if err != nil {
		return 0, err
	}
	return UnitsAvailable(available, unit), nil
}

func (s *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error) {
	return s.repo.ListBatches(ctx, req)
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}

// UpdateBatch applies administrative corrections (supplier, unit price).
// Quantities are ledger-owned and never edited here.
func (s *Service) UpdateBatch(ctx context.Context, id int64, req UpdateBatchRequest) (Batch, error) {
	if _, err := s.repo.GetBatch(ctx, id); err != nil {
		return Batch{}, err
	}

	updates := make(map[string]any)
	if req.Supplier != nil {
		updates["supplier"] = *req.Supplier
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.Sign() < 0 {
			return Batch{}, errors.New("stock: unit price must be >= 0")
		}
		updates["unit_price"] = *req.UnitPrice
	}

	if len(updates) > 0 {
		if err := s.repo.UpdateBatch(ctx, id, updates); err != nil {
			return Batch{}, fmt.Errorf("update batch: %w", err)
		}
	}
	return s.repo.GetBatch(ctx, id)
}

// DeleteBatch removes a batch administratively.
func (s *Service) DeleteBatch(ctx context.Context, id int64, actorID int64) error {
	if _, err := s.repo.GetBatch(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:delete_batch",
			Entity:   "stock_batch",
			EntityID: strconv.FormatInt(id, 10),
		})
	}
	return nil
}

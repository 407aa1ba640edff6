package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/platform/httpx"
	"github.com/kegline/kegline/internal/shared"
	"github.com/kegline/kegline/internal/stock"
)

// Handler wires HTTP endpoints for sale settlement.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	sale, err := h.service.Settle(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"sale":    sale,
		"message": fmt.Sprintf("sale %s settled: total %s, amount due %s", sale.TransactionID, shared.FormatAmount(sale.Total), shared.FormatAmount(sale.AmountDue)),
	})
}

func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid sale id")
		return
	}
	var req AddPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	payment, sale, err := h.service.AddPayment(r.Context(), id, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"payment": payment,
		"sale":    sale,
	})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid sale id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) ShowByTransactionID(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "transactionID")
	if !strings.HasPrefix(txID, "#") {
		txID = "#" + txID
	}
	sale, err := h.service.GetByTransactionID(r.Context(), txID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid sale id")
		return
	}
	var req UpdateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	sale, err := h.service.UpdateSale(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListSalesRequest{Limit: 50}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid customer_id")
			return
		}
		req.CustomerID = &id
	}
	if v := r.URL.Query().Get("sale_type"); v != "" {
		saleType := SaleType(v)
		req.SaleType = &saleType
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "from must be RFC3339")
			return
		}
		req.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "to must be RFC3339")
			return
		}
		req.To = &t
	}
	if v := r.URL.Query().Get("pending"); v != "" {
		req.Pending = v == "true" || v == "1"
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}

	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":  items,
		"total":  total,
		"limit":  req.Limit,
		"offset": req.Offset,
	})
}

func (h *Handler) ShowStats(w http.ResponseWriter, r *http.Request) {
	var req StatsRequest
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "from must be RFC3339")
			return
		}
		req.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "to must be RFC3339")
			return
		}
		req.To = &t
	}

	stats, err := h.service.Stats(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidDiscount),
		errors.Is(err, ErrInvalidPayment), errors.Is(err, ErrNoItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, credit.ErrInsufficientCredit):
		httpx.Problem(w, http.StatusConflict, "Insufficient Credit", err.Error())
	case errors.Is(err, ErrDuplicateTransactionID), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

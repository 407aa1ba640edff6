package credit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kegline/kegline/internal/platform/httpx"
	"github.com/kegline/kegline/internal/shared"
)

// Handler wires HTTP endpoints for the credit ledger.
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

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	entry, err := h.service.Post(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"entry":   entry,
		"message": fmt.Sprintf("posted %s of %s, balance now %s", entry.Type, shared.FormatAmount(entry.Amount), shared.FormatAmount(entry.BalanceAfter)),
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid customer id")
		return
	}
	req := ListEntriesRequest{CustomerID: customerID, Limit: 50}
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

	items, total, err := h.service.ListEntries(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": items,
		"total":   total,
		"limit":   req.Limit,
		"offset":  req.Offset,
	})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid customer id")
		return
	}
	balance, err := h.service.CurrentBalance(r.Context(), customerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customer_id": customerID,
		"balance":     balance,
		"formatted":   shared.FormatAmount(balance),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidTransactionType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientCredit):
		httpx.Problem(w, http.StatusConflict, "Insufficient Credit", err.Error())
	default:
		h.logger.Error("credit request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package sales

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Settle)
	r.Get("/stats", h.ShowStats)
	r.Get("/transaction/{transactionID}", h.ShowByTransactionID)
	r.Get("/{id}", h.Show)
	r.Post("/{id}", h.Update)
	r.Get("/{id}/payments", h.ListPayments)
	r.Post("/{id}/payments", h.AddPayment)
}

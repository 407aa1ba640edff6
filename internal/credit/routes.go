package credit

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Post)
	r.Get("/customer/{customerID}", h.History)
	r.Get("/customer/{customerID}/balance", h.Balance)
}

package stock

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.RecordDelivery)
	r.Get("/level", h.Level)
	r.Get("/summary", h.Summary)
	r.Get("/{id}", h.Show)
	r.Post("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

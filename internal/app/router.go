package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/customers"
	"github.com/kegline/kegline/internal/products"
	"github.com/kegline/kegline/internal/returns"
	"github.com/kegline/kegline/internal/sales"
	"github.com/kegline/kegline/internal/stock"
	"github.com/kegline/kegline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CustomersHandler *customers.Handler
	ProductsHandler  *products.Handler
	StockHandler     *stock.Handler
	CreditHandler    *credit.Handler
	SalesHandler     *sales.Handler
	ReturnsHandler   *returns.Handler
	JobsHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with Kegline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CustomersHandler != nil {
		r.Route("/customers", params.CustomersHandler.MountRoutes)
	}
	if params.ProductsHandler != nil {
		r.Route("/products", params.ProductsHandler.MountRoutes)
	}
	if params.StockHandler != nil {
		r.Route("/stock", params.StockHandler.MountRoutes)
	}
	if params.CreditHandler != nil {
		r.Route("/credit", params.CreditHandler.MountRoutes)
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.ReturnsHandler != nil {
		r.Route("/returns", params.ReturnsHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}

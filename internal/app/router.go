package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/orbitshop/orbitshop/internal/carts"
	"github.com/orbitshop/orbitshop/internal/catalog/products"
	"github.com/orbitshop/orbitshop/internal/orders"
	"github.com/orbitshop/orbitshop/internal/payments"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	OrdersHandler   *orders.Handler
	CartsHandler    *carts.Handler
	PaymentsHandler *payments.Handler
	ProductsHandler *products.Handler
	StockHandler    *stock.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with OrbitShop defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			// Slip uploads get a tighter rate limit than the global stack.
			r.Route("/payments", func(r chi.Router) {
				r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
				params.PaymentsHandler.MountRoutes(r)
			})
		}
		if params.CartsHandler != nil {
			r.Route("/carts", params.CartsHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

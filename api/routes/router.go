package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderlinehq/backend/api/controllers"
	ordercontrollers "github.com/orderlinehq/backend/api/controllers/orders"
	"github.com/orderlinehq/backend/api/middleware"
	"github.com/orderlinehq/backend/internal/catalog"
	"github.com/orderlinehq/backend/internal/orders"
	"github.com/orderlinehq/backend/internal/stock"
	"github.com/orderlinehq/backend/pkg/config"
	"github.com/orderlinehq/backend/pkg/db"
	"github.com/orderlinehq/backend/pkg/logger"
	"github.com/orderlinehq/backend/pkg/redis"
)

type RouterParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               db.Pinger
	IdempotencyStore redis.IdempotencyStore
	CatalogService   catalog.Service
	StockLedger      stock.Ledger
	OrdersService    orders.Service
	Registry         *prometheus.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// The real store is a *redis.Client, which also answers readiness pings.
	readyDeps := []controllers.DependencyPinger{}
	if dep, ok := params.IdempotencyStore.(controllers.DependencyPinger); ok {
		readyDeps = append(readyDeps, dep)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, readyDeps...))
	})

	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(logg))
		r.Use(middleware.Idempotency(params.IdempotencyStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(params.CatalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(params.CatalogService, params.StockLedger, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(params.OrdersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(params.OrdersService, logg))
			r.Post("/{orderId}/approve", ordercontrollers.Approve(params.OrdersService, logg))
			r.Post("/{orderId}/reject", ordercontrollers.Reject(params.OrdersService, logg))
		})
	})

	return r
}

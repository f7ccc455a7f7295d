package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/orderlinehq/backend/api/routes"
	"github.com/orderlinehq/backend/internal/catalog"
	"github.com/orderlinehq/backend/internal/idempotency"
	"github.com/orderlinehq/backend/internal/orders"
	"github.com/orderlinehq/backend/internal/pricing"
	"github.com/orderlinehq/backend/internal/stock"
	"github.com/orderlinehq/backend/pkg/config"
	"github.com/orderlinehq/backend/pkg/db"
	"github.com/orderlinehq/backend/pkg/logger"
	"github.com/orderlinehq/backend/pkg/metrics"
	"github.com/orderlinehq/backend/pkg/migrate"
	"github.com/orderlinehq/backend/pkg/outbox"
	"github.com/orderlinehq/backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(registry)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	pricingEngine, err := pricing.NewEngine(catalogService)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing engine", err)
		os.Exit(1)
	}

	stockLedger, err := stock.NewLedger(dbClient.DB(), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger", err)
		os.Exit(1)
	}

	idempotencyGuard, err := idempotency.NewGuard(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		catalogService,
		pricingEngine,
		stockLedger,
		idempotencyGuard,
		outboxService,
		orderMetrics,
		logg,
		orders.Options{
			ReleaseRetryAttempts: cfg.Workflow.ReleaseRetryAttempts,
			ReleaseRetryDelay:    cfg.Workflow.ReleaseRetryDelay,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:           cfg,
			Logger:           logg,
			DB:               dbClient,
			IdempotencyStore: redisClient,
			CatalogService:   catalogService,
			StockLedger:      stockLedger,
			OrdersService:    ordersService,
			Registry:         registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pageturnhq/bookstore-backend/api/routes"
	"github.com/pageturnhq/bookstore-backend/internal/cancellations"
	"github.com/pageturnhq/bookstore-backend/internal/catalog"
	"github.com/pageturnhq/bookstore-backend/internal/inventory"
	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/internal/payments"
	"github.com/pageturnhq/bookstore-backend/pkg/config"
	"github.com/pageturnhq/bookstore-backend/pkg/db"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
	"github.com/pageturnhq/bookstore-backend/pkg/migrate"
	"github.com/pageturnhq/bookstore-backend/pkg/redis"
)

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

	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	orderService, err := orders.NewService(
		ordersRepo,
		catalog.NewRepository(dbClient.DB()),
		inventory.NewLedger(),
		dbClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	callbackGuard, err := payments.NewCallbackGuard(redisClient, cfg.Payments.CallbackDedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create callback guard", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:       paymentsRepo,
		Orders:     ordersRepo,
		Guard:      callbackGuard,
		Tx:         dbClient,
		Logger:     logg,
		PendingTTL: cfg.Payments.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	paymentStats, err := payments.NewStatsService(paymentsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment stats service", err)
		os.Exit(1)
	}

	cancellationService, err := cancellations.NewService(
		cancellations.NewRepository(dbClient.DB()),
		ordersRepo,
		inventory.NewLedger(),
		dbClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DBPinger:      dbClient,
			RedisPinger:   redisClient,
			Orders:        orderService,
			Payments:      paymentService,
			PaymentStats:  paymentStats,
			Cancellations: cancellationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

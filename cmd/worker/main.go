package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/internal/activity"
	"github.com/jerkyranks/jerkyranks-backend/internal/leaderboard"
	"github.com/jerkyranks/jerkyranks-backend/internal/orders"
	"github.com/jerkyranks/jerkyranks-backend/internal/products"
	"github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/internal/streaks"
	"github.com/jerkyranks/jerkyranks-backend/internal/users"
	"github.com/jerkyranks/jerkyranks-backend/internal/webhooks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/catalog"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/metrics"
	"github.com/jerkyranks/jerkyranks-backend/pkg/migrate"
	"github.com/jerkyranks/jerkyranks-backend/pkg/queue"
	"github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	requireResource(logg, "dev migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	factory, err := cache.FactoryFor(cfg.Cache, redisClient)
	requireResource(logg, "cache backend", err)
	caches, err := cache.NewRegistry(cfg.Cache, factory, logg, metrics.NewCacheMetrics(prometheus.DefaultRegisterer))
	requireResource(logg, "cache registry", err)

	usersRepo := users.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	rankingsRepo := rankings.NewRepository(dbClient.DB())
	activityRepo := activity.NewRepository(dbClient.DB())
	streaksRepo := streaks.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	coinsRepo := achievements.NewRepository(dbClient.DB())
	boardsRepo := leaderboard.NewRepository(dbClient.DB())

	leaderboardService, err := leaderboard.NewService(boardsRepo, caches, logg)
	requireResource(logg, "leaderboard service", err)

	engine, err := achievements.NewEngine(coinsRepo, rankingsRepo, activityRepo, streaksRepo, usersRepo, productsRepo, leaderboardService, logg)
	requireResource(logg, "coin engine", err)

	catalogClient, err := catalog.NewClient(cfg.Catalog, logg)
	requireResource(logg, "catalog client", err)

	productsService, err := products.NewService(productsRepo, catalogClient, rankingsRepo, ordersRepo, rankingsRepo, usersRepo, cfg.Operator, caches, logg)
	requireResource(logg, "products service", err)

	jobQueue, err := queue.New(queue.Options{
		DB:               dbClient,
		Logger:           logg,
		Metrics:          metrics.NewQueueMetrics(prometheus.DefaultRegisterer),
		MaxAttempts:      cfg.Queue.MaxAttempts,
		BackoffBase:      cfg.Queue.BackoffBase,
		CompletedMaxAge:  cfg.Queue.CompletedMaxAge,
		CompletedMaxKeep: cfg.Queue.CompletedMaxKeep,
		FailedMaxAge:     cfg.Queue.FailedMaxAge,
		FailedMaxKeep:    cfg.Queue.FailedMaxKeep,
	})
	requireResource(logg, "job queue", err)

	productsHandler, err := webhooks.NewProductsHandler(productsRepo, caches, logg)
	requireResource(logg, "products handler", err)
	customersHandler, err := webhooks.NewCustomersHandler(usersRepo, logg)
	requireResource(logg, "customers handler", err)
	ordersHandler, err := webhooks.NewOrdersHandler(ordersRepo, usersRepo, jobQueue, logg)
	requireResource(logg, "orders handler", err)
	recalcHandler, err := webhooks.NewCoinRecalcHandler(engine, logg)
	requireResource(logg, "recalc handler", err)

	// Webhook traffic and recalc sweeps run on separate pools so a long
	// recalculation cannot starve order ingestion.
	webhookPool, err := queue.NewPool(queue.PoolOptions{
		Queue:         jobQueue,
		Handlers:      []queue.Handler{productsHandler, customersHandler, ordersHandler},
		Workers:       cfg.Queue.WebhookWorkers,
		PollInterval:  cfg.Queue.PollInterval,
		PruneInterval: time.Minute,
	})
	requireResource(logg, "webhook pool", err)

	recalcPool, err := queue.NewPool(queue.PoolOptions{
		Queue:        jobQueue,
		Handlers:     []queue.Handler{recalcHandler},
		Workers:      cfg.Queue.RecalcWorkers,
		PollInterval: cfg.Queue.PollInterval,
	})
	requireResource(logg, "recalc pool", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instanceID(),
	})
	logg.Info(ctx, "starting worker")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := webhookPool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "webhook pool stopped unexpectedly", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := recalcPool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "recalc pool stopped unexpectedly", err)
		}
	}()
	go func() {
		defer wg.Done()
		refreshCatalog(ctx, cfg.Catalog.RefreshTTL, productsService, logg)
	}()
	wg.Wait()

	logg.Info(ctx, "worker shutting down gracefully")
}

// refreshCatalog keeps the catalog cache warm so user requests rarely pay
// the upstream fetch.
func refreshCatalog(ctx context.Context, every time.Duration, svc products.Service, logg *logger.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.RefreshCatalog(ctx); err != nil {
				logg.Error(ctx, "scheduled catalog refresh failed", err)
				continue
			}
			logg.Info(ctx, "catalog refreshed")
		}
	}
}

func instanceID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "worker-0"
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jerkyranks/jerkyranks-backend/api/routes"
	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/internal/activity"
	"github.com/jerkyranks/jerkyranks-backend/internal/leaderboard"
	"github.com/jerkyranks/jerkyranks-backend/internal/orders"
	"github.com/jerkyranks/jerkyranks-backend/internal/products"
	"github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/internal/realtime"
	"github.com/jerkyranks/jerkyranks-backend/internal/stats"
	"github.com/jerkyranks/jerkyranks-backend/internal/streaks"
	"github.com/jerkyranks/jerkyranks-backend/internal/users"
	"github.com/jerkyranks/jerkyranks-backend/internal/webhooks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/auth/session"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(logg, "session manager", err)

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

	catalogClient, err := catalog.NewClient(cfg.Catalog, logg)
	requireResource(logg, "catalog client", err)

	usersService, err := users.NewService(usersRepo, sessionManager, cfg.JWT, cfg.Operator, logg)
	requireResource(logg, "users service", err)

	streakTracker, err := streaks.NewTracker(streaksRepo, cfg.Streaks, logg)
	requireResource(logg, "streak tracker", err)

	leaderboardService, err := leaderboard.NewService(boardsRepo, caches, logg)
	requireResource(logg, "leaderboard service", err)

	aggregator, err := stats.NewAggregator(rankingsRepo, productsRepo, streaksRepo, leaderboardService, boardsRepo, caches, logg)
	requireResource(logg, "stats aggregator", err)

	engine, err := achievements.NewEngine(coinsRepo, rankingsRepo, activityRepo, streaksRepo, usersRepo, productsRepo, leaderboardService, logg)
	requireResource(logg, "coin engine", err)

	recalcFlags, err := achievements.NewRedisRecalcFlags(redisClient)
	requireResource(logg, "recalc flags", err)
	recalculator, err := achievements.NewRecalculator(coinsRepo, engine, usersRepo, rankingsRepo, activityRepo, recalcFlags, caches, logg)
	requireResource(logg, "recalculator", err)

	productsService, err := products.NewService(productsRepo, catalogClient, rankingsRepo, ordersRepo, rankingsRepo, usersRepo, cfg.Operator, caches, logg)
	requireResource(logg, "products service", err)

	hub, err := realtime.NewHub(cfg.Realtime, logg, metrics.NewGatewayMetrics(prometheus.DefaultRegisterer))
	requireResource(logg, "realtime hub", err)
	gateway, err := realtime.NewGateway(hub, cfg.JWT, cfg.Realtime, sessionManager, logg)
	requireResource(logg, "realtime gateway", err)

	rankingsService, err := rankings.NewService(rankingsRepo, dbClient, caches, streakTracker, aggregator, engine, leaderboardService, activityRepo, hub, logg)
	requireResource(logg, "rankings service", err)

	activityService, err := activity.NewService(activityRepo, logg)
	requireResource(logg, "activity service", err)

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

	ingestor, err := webhooks.NewIngestor(jobQueue, logg)
	requireResource(logg, "webhook ingestor", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Sessions:    sessionManager,
			Users:       usersService,
			Products:    productsService,
			Rankings:    rankingsService,
			Activity:    activityService,
			Engine:      engine,
			Recalc:      recalculator,
			Definitions: coinsRepo,
			Leaderboard: leaderboardService,
			Stats:       aggregator,
			Streaks:     streakTracker,
			Ingestor:    ingestor,
			Gateway:     gateway,
			Caches:      caches,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

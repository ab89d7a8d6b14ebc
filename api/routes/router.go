package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jerkyranks/jerkyranks-backend/api/controllers"
	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	activitysvc "github.com/jerkyranks/jerkyranks-backend/internal/activity"
	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	leaderboardsvc "github.com/jerkyranks/jerkyranks-backend/internal/leaderboard"
	productsvc "github.com/jerkyranks/jerkyranks-backend/internal/products"
	rankingsvc "github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/internal/realtime"
	statssvc "github.com/jerkyranks/jerkyranks-backend/internal/stats"
	streaksvc "github.com/jerkyranks/jerkyranks-backend/internal/streaks"
	userssvc "github.com/jerkyranks/jerkyranks-backend/internal/users"
	webhooksvc "github.com/jerkyranks/jerkyranks-backend/internal/webhooks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/auth/session"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	dbpkg "github.com/jerkyranks/jerkyranks-backend/pkg/db"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	redisclient "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

type sessionManager interface {
	session.Checker
	Revoke(ctx context.Context, jti string) error
}

// Services bundles everything the router mounts.
type Services struct {
	Sessions    sessionManager
	Users       userssvc.Service
	Products    productsvc.Service
	Rankings    rankingsvc.Service
	Activity    activitysvc.Service
	Engine      achievements.Engine
	Recalc      achievements.Recalculator
	Definitions *achievements.Repository
	Leaderboard leaderboardsvc.Service
	Stats       statssvc.Aggregator
	Streaks     streaksvc.Tracker
	Ingestor    *webhooksvc.Ingestor
	Gateway     *realtime.Gateway
	Caches      *cache.Registry
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	db dbpkg.Pinger,
	redis redisclient.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, db, redis))
	})

	// Webhook ingestion stays outside the session gate; the sender
	// authenticates out of band and the handler only enqueues.
	r.Post("/webhooks/{source}", controllers.ReceiveWebhook(svcs.Ingestor, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/magic-link", controllers.AuthRequestMagicLink(svcs.Users, logg))
		r.Post("/redeem", controllers.AuthRedeemMagicLink(svcs.Users, logg))
	})

	// Real-time socket; the client authenticates on its first frame.
	r.Handle("/ws", svcs.Gateway)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, svcs.Sessions, logg))

		r.Post("/auth/logout", controllers.AuthLogout(svcs.Sessions, logg))
		r.Get("/me", controllers.Me(svcs.Users, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svcs.Products, logg))
			r.Get("/rankable", controllers.RankableProducts(svcs.Products, logg))
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/", controllers.GetRankings(svcs.Rankings, logg))
			r.Put("/", controllers.SaveRankings(svcs.Rankings, logg))
			r.Delete("/", controllers.ClearRankings(svcs.Rankings, logg))
		})

		r.Route("/coins", func(r chi.Router) {
			r.Get("/", controllers.ListCoins(svcs.Engine, logg))
			r.Get("/milestone", controllers.NextMilestone(svcs.Engine, logg))
			r.Get("/insights", controllers.Insights(svcs.Engine, logg))
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", controllers.LeaderboardTop(svcs.Leaderboard, logg))
			r.Get("/me", controllers.LeaderboardPosition(svcs.Leaderboard, logg))
			r.Get("/compare", controllers.LeaderboardCompare(svcs.Leaderboard, logg))
		})

		r.Get("/stats/home", controllers.HomeStats(svcs.Stats, logg))
		r.Get("/streaks", controllers.Streaks(svcs.Streaks, logg))

		r.Route("/activity", func(r chi.Router) {
			r.Get("/feed", controllers.ActivityFeed(svcs.Activity, logg))
			r.Post("/track", controllers.TrackActivity(svcs.Activity, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Post("/catalog/refresh", controllers.RefreshCatalog(svcs.Products, logg))
			r.Put("/coins", controllers.AdminUpsertCoinDefinition(svcs.Definitions, svcs.Caches, logg))
			r.Post("/coins/{code}/recalculate", controllers.AdminRecalculateCoin(svcs.Recalc, logg))
			r.Delete("/coins/{code}/recalculate", controllers.AdminCancelRecalculation(svcs.Recalc, logg))
		})
	})

	return r
}

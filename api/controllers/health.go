package controllers

import (
	"net/http"

	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	dbpkg "github.com/jerkyranks/jerkyranks-backend/pkg/db"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	redisclient "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-JerkyRanks-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, db dbpkg.Pinger, redis redisclient.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-JerkyRanks-Env", cfg.App.Env)

		checks := map[string]string{"db": "ok", "redis": "ok"}
		healthy := true
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				checks["db"] = err.Error()
				healthy = false
			}
		}
		if redis != nil {
			if err := redis.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}
		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

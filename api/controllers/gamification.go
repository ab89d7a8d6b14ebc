package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/api/validators"
	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	leaderboardsvc "github.com/jerkyranks/jerkyranks-backend/internal/leaderboard"
	statssvc "github.com/jerkyranks/jerkyranks-backend/internal/stats"
	streaksvc "github.com/jerkyranks/jerkyranks-backend/internal/streaks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// ListCoins returns every visible coin with the caller's live progress.
func ListCoins(engine achievements.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		coins, err := engine.GetWithProgress(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coins": coins})
	}
}

// NextMilestone returns the closest unearned tier across the caller's coins.
func NextMilestone(engine achievements.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		milestone, err := engine.NextMilestone(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"milestone": milestone})
	}
}

// Insights returns short motivational lines derived from the caller's
// progress, streaks, and standing.
func Insights(engine achievements.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		insights, err := engine.Insights(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"insights": insights})
	}
}

// LeaderboardTop serves the ranked top list for a period.
func LeaderboardTop(svc leaderboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := parsePeriod(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.Top(r.Context(), limit, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"period": period, "entries": entries})
	}
}

// LeaderboardPosition serves the caller's standing for a period.
func LeaderboardPosition(svc leaderboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := parsePeriod(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID := middleware.UserUUIDFromContext(r.Context())
		standing, err := svc.Position(r.Context(), userID, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"standing": standing})
	}
}

// LeaderboardCompare contrasts the caller's standing with another user's.
func LeaderboardCompare(svc leaderboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, err := parsePeriod(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		other, err := uuid.Parse(r.URL.Query().Get("user"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		comparison, err := svc.Compare(r.Context(), userID, other, period)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, comparison)
	}
}

// HomeStats serves the aggregated home-surface numbers.
func HomeStats(agg statssvc.Aggregator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		stats, err := agg.ForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// Streaks returns the caller's current streak state.
func Streaks(tracker streaksvc.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		streaks, err := tracker.ForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"streaks": streaks})
	}
}

func parsePeriod(r *http.Request) (enums.LeaderboardPeriod, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return enums.PeriodAllTime, nil
	}
	period := enums.LeaderboardPeriod(raw)
	if !period.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown leaderboard period").WithDetails(map[string]any{"period": raw})
	}
	return period, nil
}

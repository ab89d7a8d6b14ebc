package controllers

import (
	"net/http"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/api/validators"
	activitysvc "github.com/jerkyranks/jerkyranks-backend/internal/activity"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/pagination"
)

// ActivityFeed serves the caller's activity history, newest first, with
// cursor pagination.
func ActivityFeed(svc activitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		page, err := svc.Feed(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// TrackActivity records a view or search event. The write is acknowledged
// before it matters anywhere; a dropped event costs one counter tick.
func TrackActivity(svc activitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input activitysvc.TrackInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		if err := svc.Track(r.Context(), userID, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAccepted(w, map[string]string{"status": "tracked"})
	}
}

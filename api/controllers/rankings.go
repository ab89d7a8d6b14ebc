package controllers

import (
	"net/http"
	"strings"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/api/validators"
	rankingsvc "github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

const operationIDHeader = "X-Operation-Id"

type saveRankingsRequest struct {
	ListID   string                    `json:"list_id,omitempty"`
	Rankings []rankingsvc.RankingInput `json:"rankings" validate:"required,min=1,dive"`
}

// SaveRankings replaces the caller's ranked list in one operation. Clients
// retrying a flaky connection send the same X-Operation-Id and the second
// write is absorbed.
func SaveRankings(svc rankingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())

		var payload saveRankingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opID := strings.TrimSpace(r.Header.Get(operationIDHeader))
		result, err := svc.SaveList(r.Context(), userID, payload.ListID, opID, payload.Rankings)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetRankings returns the caller's list ordered by position.
func GetRankings(svc rankingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		list, err := svc.GetList(r.Context(), userID, r.URL.Query().Get("list_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"rankings": list})
	}
}

// ClearRankings empties the caller's list.
func ClearRankings(svc rankingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if err := svc.ClearList(r.Context(), userID, r.URL.Query().Get("list_id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

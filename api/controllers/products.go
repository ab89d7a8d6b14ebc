package controllers

import (
	"net/http"
	"strings"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	productsvc "github.com/jerkyranks/jerkyranks-backend/internal/products"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// ListProducts serves the enriched catalog, optionally filtered by a search
// phrase over title, taxonomy, and tags.
func ListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		search := strings.TrimSpace(r.URL.Query().Get("search"))
		products, err := svc.GetAll(r.Context(), search)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

// RankableProducts returns the subset the caller may rank, split into
// purchased and open products.
func RankableProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		result, err := svc.GetRankableForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RefreshCatalog forces a catalog pull ahead of the TTL. Admin only.
func RefreshCatalog(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RefreshCatalog(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "refreshed"})
	}
}

package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/api/validators"
	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// AdminRecalculateCoin sweeps the affected users for one definition. The
// sweep runs inline on the request; large catalogs cancel via the companion
// endpoint.
func AdminRecalculateCoin(recalc achievements.Recalculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		summary, err := recalc.Recalculate(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminCancelRecalculation flags a running sweep to stop at its next batch
// boundary.
func AdminCancelRecalculation(recalc achievements.Recalculator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := recalc.Cancel(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAccepted(w, map[string]string{"status": "cancelling"})
	}
}

type coinDefinitionRequest struct {
	Code             string         `json:"code" validate:"required"`
	Name             string         `json:"name" validate:"required"`
	Description      string         `json:"description,omitempty"`
	Icon             string         `json:"icon,omitempty"`
	CollectionType   string         `json:"collection_type" validate:"required"`
	RequirementType  string         `json:"requirement_type" validate:"required"`
	RequirementValue int            `json:"requirement_value" validate:"gte=0"`
	RequirementDate  *time.Time     `json:"requirement_date,omitempty"`
	ProductIDs       []string       `json:"product_ids,omitempty"`
	CategorySelector []string       `json:"category_selectors,omitempty"`
	ProteinFilters   []string       `json:"protein_filters,omitempty"`
	HasTiers         bool           `json:"has_tiers"`
	TierThresholds   map[string]int `json:"tier_thresholds,omitempty"`
	Points           int            `json:"points" validate:"gte=0"`
	IsHidden         bool           `json:"is_hidden"`
	IsActive         *bool          `json:"is_active,omitempty"`
	PrerequisiteID   *uuid.UUID     `json:"prerequisite_id,omitempty"`
}

// validateTierThresholds requires every key to be an earnable tier and the
// thresholds to climb strictly from bronze through diamond.
func validateTierThresholds(thresholds map[string]int) error {
	if len(thresholds) == 0 {
		return nil
	}
	for name := range thresholds {
		tier, err := enums.ParseTier(name)
		if err != nil || tier == enums.TierComplete {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("bad tier threshold: unknown tier %q", name))
		}
	}
	previous := 0
	for _, tier := range enums.TierOrder {
		value, ok := thresholds[string(tier)]
		if !ok {
			continue
		}
		if value <= previous {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("bad tier threshold: %s (%d) must exceed the tier below", tier, value))
		}
		previous = value
	}
	return nil
}

// AdminUpsertCoinDefinition creates or updates one coin definition and drops
// the definition cache so the next evaluation sees it.
func AdminUpsertCoinDefinition(repo *achievements.Repository, caches *cache.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload coinDefinitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		collection, err := enums.ParseCoinCollectionType(payload.CollectionType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collection type"))
			return
		}
		requirement, err := enums.ParseRequirementType(payload.RequirementType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid requirement type"))
			return
		}
		if err := validateTierThresholds(payload.TierThresholds); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		def := &models.CoinDefinition{
			Code:              payload.Code,
			Name:              payload.Name,
			Description:       payload.Description,
			Icon:              payload.Icon,
			CollectionType:    collection,
			RequirementType:   requirement,
			RequirementValue:  payload.RequirementValue,
			RequirementDate:   payload.RequirementDate,
			ProductIDs:        pq.StringArray(payload.ProductIDs),
			CategorySelectors: pq.StringArray(payload.CategorySelector),
			ProteinFilters:    pq.StringArray(payload.ProteinFilters),
			HasTiers:          payload.HasTiers,
			TierThresholds:    models.TierThresholds(payload.TierThresholds),
			Points:            payload.Points,
			IsHidden:          payload.IsHidden,
			IsActive:          payload.IsActive == nil || *payload.IsActive,
			PrerequisiteID:    payload.PrerequisiteID,
		}
		if err := repo.UpsertDefinition(r.Context(), def); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert coin definition"))
			return
		}

		if err := caches.Definitions.Invalidate(r.Context(), "*"); err != nil {
			logg.Error(r.Context(), "definitions invalidation failed", err)
		}
		responses.WriteSuccess(w, def)
	}
}

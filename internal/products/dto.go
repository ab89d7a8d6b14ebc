package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxonomyDTO is one axis of the product taxonomy (animal or flavor).
type TaxonomyDTO struct {
	Type    string `json:"type,omitempty"`
	Display string `json:"display,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

// StatsDTO is the community ranking signal attached to a product.
type StatsDTO struct {
	TimesRanked   int64            `json:"times_ranked"`
	UniqueRankers int64            `json:"unique_rankers"`
	AverageRank   *decimal.Decimal `json:"average_rank,omitempty"`
	BestRank      int              `json:"best_rank,omitempty"`
	WorstRank     int              `json:"worst_rank,omitempty"`
	LastRankedAt  *time.Time       `json:"last_ranked_at,omitempty"`
}

// EnrichedProduct is a catalog product merged with taxonomy and stats.
type EnrichedProduct struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Handle          string      `json:"handle,omitempty"`
	Vendor          string      `json:"vendor,omitempty"`
	ProductType     string      `json:"product_type,omitempty"`
	Body            string      `json:"body,omitempty"`
	ImageURL        string      `json:"image_url,omitempty"`
	Price           string      `json:"price,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	Animal          TaxonomyDTO `json:"animal"`
	Flavor          TaxonomyDTO `json:"flavor"`
	ProteinCategory string      `json:"protein_category,omitempty"`
	Stats           StatsDTO    `json:"stats"`
}

// EligibilityMode says which rule produced a rankable set.
type EligibilityMode string

const (
	// EligibilityAllCatalog applies to employees; every unranked product
	// is open to them.
	EligibilityAllCatalog EligibilityMode = "all_catalog"
	// EligibilityPurchased restricts a buyer to unranked products they
	// bought, when no products carry the force flag.
	EligibilityPurchased EligibilityMode = "purchased"
	// EligibilityPurchasedOrFlagged widens EligibilityPurchased with the
	// operator-flagged set.
	EligibilityPurchasedOrFlagged EligibilityMode = "purchased_or_flagged"
)

// RankableResult is the rankable set for one user with the rule that
// produced it.
type RankableResult struct {
	Mode     EligibilityMode   `json:"mode"`
	Products []EnrichedProduct `json:"products"`
}

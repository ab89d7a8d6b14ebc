package achievements

import (
	"time"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// TierEvent is one earned-tier notification. First earns of tiered coins emit
// one event per tier on the path up to the earned tier; upgrades emit one.
type TierEvent struct {
	Tier   enums.Tier `json:"tier"`
	Points int        `json:"points"`
}

// Award describes a user-visible state change produced by an evaluation.
type Award struct {
	Code          string                   `json:"code"`
	Name          string                   `json:"name"`
	Icon          string                   `json:"icon,omitempty"`
	Collection    enums.CoinCollectionType `json:"collection_type"`
	Kind          enums.AwardKind          `json:"kind"`
	PreviousTier  enums.Tier               `json:"previous_tier,omitempty"`
	NewTier       enums.Tier               `json:"new_tier"`
	PointsAwarded int                      `json:"points_awarded"`
	PointsGained  int                      `json:"points_gained"`
	Events        []TierEvent              `json:"events"`
}

// CoinProgressDTO is one definition paired with the user's state against it.
// Unearned hidden coins are filtered out before this is built.
type CoinProgressDTO struct {
	Code            string                   `json:"code"`
	Name            string                   `json:"name"`
	Description     string                   `json:"description,omitempty"`
	Icon            string                   `json:"icon,omitempty"`
	Collection      enums.CoinCollectionType `json:"collection_type"`
	HasTiers        bool                     `json:"has_tiers"`
	MaxPoints       int                      `json:"max_points"`
	PercentComplete float64                  `json:"percent_complete"`
	CurrentTier     enums.Tier               `json:"current_tier,omitempty"`
	PointsAwarded   int                      `json:"points_awarded"`
	Progress        models.JSONMap           `json:"progress,omitempty"`
	Earned          bool                     `json:"earned"`
	EarnedAt        *time.Time               `json:"earned_at,omitempty"`
}

// Divergence records a stored tier or point total above what the current
// counters support. Validation runs report these instead of downgrading.
type Divergence struct {
	Code           string     `json:"code"`
	StoredTier     enums.Tier `json:"stored_tier"`
	ComputedTier   enums.Tier `json:"computed_tier,omitempty"`
	StoredPoints   int        `json:"stored_points"`
	ComputedPoints int        `json:"computed_points"`
}

// evaluation is the outcome of running one definition's requirement against
// a user's counters.
type evaluation struct {
	Percent  float64
	Tier     enums.Tier
	Points   int
	Progress models.JSONMap
}

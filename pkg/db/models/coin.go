package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// CoinDefinition describes one achievement. Rows are immutable per version;
// admin edits bump Version rather than rewriting history.
type CoinDefinition struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string                   `gorm:"column:code;not null;uniqueIndex"`
	Name           string                   `gorm:"column:name;not null"`
	Description    string                   `gorm:"column:description"`
	Icon           string                   `gorm:"column:icon"`
	CollectionType enums.CoinCollectionType `gorm:"column:collection_type;not null"`

	RequirementType  enums.RequirementType `gorm:"column:requirement_type;not null"`
	RequirementValue int                   `gorm:"column:requirement_value;not null;default:0"`
	RequirementDate  *time.Time            `gorm:"column:requirement_date"`

	// Static collections carry explicit product ids; dynamic collections carry
	// category selectors resolved against metadata at evaluation time.
	ProductIDs        pq.StringArray `gorm:"column:product_ids;type:text[]"`
	CategorySelectors pq.StringArray `gorm:"column:category_selectors;type:text[]"`
	ProteinFilters    pq.StringArray `gorm:"column:protein_filters;type:text[]"`

	HasTiers       bool           `gorm:"column:has_tiers;not null;default:false"`
	TierThresholds TierThresholds `gorm:"column:tier_thresholds;type:jsonb"`
	Points         int            `gorm:"column:points;not null;default:0"`

	IsHidden       bool       `gorm:"column:is_hidden;not null;default:false"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	PrerequisiteID *uuid.UUID `gorm:"column:prerequisite_id;type:uuid"`

	Version   int       `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// UserCoin is a user's current state against one definition. Tier and
// points_awarded never decrease.
type UserCoin struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_coins_user_coin;index"`
	CoinID          uuid.UUID  `gorm:"column:coin_id;type:uuid;not null;uniqueIndex:ux_user_coins_user_coin"`
	CurrentTier     enums.Tier `gorm:"column:current_tier;not null"`
	PercentComplete float64    `gorm:"column:percent_complete;not null;default:0"`
	PointsAwarded   int        `gorm:"column:points_awarded;not null;default:0"`
	Progress        JSONMap    `gorm:"column:progress;type:jsonb"`
	EarnedAt        time.Time  `gorm:"column:earned_at;not null;index"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

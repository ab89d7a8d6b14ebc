package enums

import "fmt"

// CoinCollectionType groups coin definitions by how their requirement is
// evaluated.
type CoinCollectionType string

const (
	CollectionEngagement CoinCollectionType = "engagement"
	CollectionStatic     CoinCollectionType = "static_collection"
	CollectionDynamic    CoinCollectionType = "dynamic_collection"
	CollectionFlavor     CoinCollectionType = "flavor_coin"
	CollectionHidden     CoinCollectionType = "hidden"
)

var validCollectionTypes = []CoinCollectionType{
	CollectionEngagement,
	CollectionStatic,
	CollectionDynamic,
	CollectionFlavor,
	CollectionHidden,
}

// IsValid reports whether the value matches a known collection type.
func (c CoinCollectionType) IsValid() bool {
	for _, candidate := range validCollectionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsCollection reports whether the requirement resolves to a product set.
func (c CoinCollectionType) IsCollection() bool {
	return c == CollectionStatic || c == CollectionDynamic || c == CollectionFlavor
}

// ParseCoinCollectionType converts raw input into a CoinCollectionType.
func ParseCoinCollectionType(value string) (CoinCollectionType, error) {
	candidate := CoinCollectionType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid collection type %q", value)
	}
	return candidate, nil
}

// RequirementType identifies an engagement counter a coin requirement reads.
type RequirementType string

const (
	RequirementRankCount             RequirementType = "rank_count"
	RequirementSearchCount           RequirementType = "search_count"
	RequirementPageViewCount         RequirementType = "page_view_count"
	RequirementProductViewCount      RequirementType = "product_view_count"
	RequirementUniqueProductViews    RequirementType = "unique_product_view_count"
	RequirementProfileViewCount      RequirementType = "profile_view_count"
	RequirementUniqueProfileViews    RequirementType = "unique_profile_view_count"
	RequirementStreakDays            RequirementType = "streak_days"
	RequirementDailyLoginStreak      RequirementType = "daily_login_streak"
	RequirementLeaderboardPosition   RequirementType = "leaderboard_position"
	RequirementJoinBefore            RequirementType = "join_before"
	RequirementProductList           RequirementType = "product_list"
	RequirementCategorySelector      RequirementType = "category_selector"
	RequirementAllRankableCollection RequirementType = "all_rankable"
)

var validRequirementTypes = []RequirementType{
	RequirementRankCount,
	RequirementSearchCount,
	RequirementPageViewCount,
	RequirementProductViewCount,
	RequirementUniqueProductViews,
	RequirementProfileViewCount,
	RequirementUniqueProfileViews,
	RequirementStreakDays,
	RequirementDailyLoginStreak,
	RequirementLeaderboardPosition,
	RequirementJoinBefore,
	RequirementProductList,
	RequirementCategorySelector,
	RequirementAllRankableCollection,
}

// IsValid reports whether the value matches a known requirement type.
func (r RequirementType) IsValid() bool {
	for _, candidate := range validRequirementTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsRankingBased reports whether evaluating the requirement reads rankings.
func (r RequirementType) IsRankingBased() bool {
	switch r {
	case RequirementRankCount, RequirementProductList, RequirementCategorySelector, RequirementAllRankableCollection:
		return true
	}
	return false
}

// IsActivityBased reports whether evaluating the requirement reads the
// activity log or view counters.
func (r RequirementType) IsActivityBased() bool {
	switch r {
	case RequirementSearchCount,
		RequirementPageViewCount,
		RequirementProductViewCount,
		RequirementUniqueProductViews,
		RequirementProfileViewCount,
		RequirementUniqueProfileViews:
		return true
	}
	return false
}

// ParseRequirementType converts raw input into a RequirementType.
func ParseRequirementType(value string) (RequirementType, error) {
	candidate := RequirementType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid requirement type %q", value)
	}
	return candidate, nil
}

// AwardKind differentiates award results returned by the coin engine.
type AwardKind string

const (
	AwardNew         AwardKind = "new"
	AwardTierUpgrade AwardKind = "tier_upgrade"
)

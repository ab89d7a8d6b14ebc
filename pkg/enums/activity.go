package enums

import "fmt"

// ActivityType tags rows in the append-only activity log.
type ActivityType string

const (
	ActivityProductRanked    ActivityType = "product_ranked"
	ActivityRankingsCleared  ActivityType = "rankings_cleared"
	ActivitySearch           ActivityType = "search"
	ActivityPageView         ActivityType = "page_view"
	ActivityProductView      ActivityType = "product_view"
	ActivityProfileView      ActivityType = "profile_view"
	ActivityLogin            ActivityType = "login"
	ActivityCoinEarned       ActivityType = "coin_earned"
	ActivityStreakMilestone  ActivityType = "streak_milestone"
)

var validActivityTypes = []ActivityType{
	ActivityProductRanked,
	ActivityRankingsCleared,
	ActivitySearch,
	ActivityPageView,
	ActivityProductView,
	ActivityProfileView,
	ActivityLogin,
	ActivityCoinEarned,
	ActivityStreakMilestone,
}

// IsValid reports whether the value matches a known activity type.
func (a ActivityType) IsValid() bool {
	for _, candidate := range validActivityTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivityType converts raw input into an ActivityType.
func ParseActivityType(value string) (ActivityType, error) {
	candidate := ActivityType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid activity type %q", value)
	}
	return candidate, nil
}

// LeaderboardPeriod selects the earn window for score aggregation.
type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "all_time"
	PeriodWeek    LeaderboardPeriod = "week"
	PeriodMonth   LeaderboardPeriod = "month"
)

var validPeriods = []LeaderboardPeriod{PeriodAllTime, PeriodWeek, PeriodMonth}

// IsValid reports whether the value matches a known period.
func (p LeaderboardPeriod) IsValid() bool {
	for _, candidate := range validPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseLeaderboardPeriod converts raw input into a LeaderboardPeriod,
// defaulting to all_time for empty input.
func ParseLeaderboardPeriod(value string) (LeaderboardPeriod, error) {
	if value == "" {
		return PeriodAllTime, nil
	}
	candidate := LeaderboardPeriod(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid leaderboard period %q", value)
	}
	return candidate, nil
}

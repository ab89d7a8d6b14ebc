package enums

import "fmt"

// StreakType is the closed set of streaks the tracker maintains.
type StreakType string

const (
	StreakDailyRank  StreakType = "daily_rank"
	StreakDailyLogin StreakType = "daily_login"
)

var validStreakTypes = []StreakType{StreakDailyRank, StreakDailyLogin}

// IsValid reports whether the value matches a known streak type.
func (s StreakType) IsValid() bool {
	for _, candidate := range validStreakTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStreakType converts raw input into a StreakType.
func ParseStreakType(value string) (StreakType, error) {
	candidate := StreakType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid streak type %q", value)
	}
	return candidate, nil
}

package enums

import "fmt"

// Tier is a coin tier. Ordering matters: bronze is the lowest earnable tier
// and complete marks non-tiered coins that reached 100%.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
	TierComplete Tier = "complete"
)

// TierOrder lists earnable tiers from lowest to highest, ending with complete.
var TierOrder = []Tier{
	TierBronze,
	TierSilver,
	TierGold,
	TierPlatinum,
	TierDiamond,
	TierComplete,
}

var tierRank = map[Tier]int{
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
	TierDiamond:  5,
	TierComplete: 6,
}

// Rank returns the tier's position in the tier order; zero for unknown tiers.
func (t Tier) Rank() int {
	return tierRank[t]
}

// IsValid reports whether the value is a known tier.
func (t Tier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier converts raw input into a Tier.
func ParseTier(value string) (Tier, error) {
	candidate := Tier(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid tier %q", value)
	}
	return candidate, nil
}

// DefaultTierThresholds is the percent threshold per tier applied when a
// definition does not carry its own mapping.
var DefaultTierThresholds = map[Tier]int{
	TierBronze:   40,
	TierSilver:   60,
	TierGold:     75,
	TierPlatinum: 90,
	TierDiamond:  100,
}

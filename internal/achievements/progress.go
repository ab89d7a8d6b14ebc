package achievements

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
)

// Milestone is the next achievement worth surfacing to a user: the coin
// closest to its next tier threshold.
type Milestone struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon,omitempty"`
	Label       string     `json:"label"`
	Target      enums.Tier `json:"target"`
	ProgressPct float64    `json:"progress_pct"`
	Remaining   float64    `json:"remaining"`
}

type milestoneCandidate struct {
	milestone Milestone
	points    int
	partial   bool
}

// NextMilestone picks the unearned or partially-earned coin with the smallest
// gap to its next threshold. Partial progress outranks untouched coins; ties
// break toward the higher point value. Returns nil when every visible coin is
// maxed out.
func (e *engine) NextMilestone(ctx context.Context, userID uuid.UUID) (*Milestone, error) {
	defs, err := e.repo.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coin definitions")
	}
	rows, err := e.repo.ListUserCoins(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list user coins")
	}
	earned := make(map[uuid.UUID]*models.UserCoin, len(rows))
	for i := range rows {
		earned[rows[i].CoinID] = &rows[i]
	}

	var candidates []milestoneCandidate
	for i := range defs {
		def := &defs[i]
		row := earned[def.ID]
		if def.IsHidden && row == nil {
			continue
		}

		currentTier := enums.Tier("")
		if row != nil {
			currentTier = row.CurrentTier
		}
		target, threshold, ok := e.nextTarget(def, currentTier)
		if !ok {
			continue
		}

		eval, err := e.evaluate(ctx, userID, def)
		if err != nil {
			dctx := e.logg.WithCoinCode(e.logg.WithUserID(ctx, userID.String()), def.Code)
			e.logg.Warn(dctx, "milestone evaluation failed, skipping definition")
			continue
		}
		remaining := float64(threshold) - eval.Percent
		if remaining <= 0 {
			// Counters moved since the last award; the next evaluation pass
			// will promote this one, not the milestone surface.
			continue
		}

		candidates = append(candidates, milestoneCandidate{
			milestone: Milestone{
				Code:        def.Code,
				Name:        def.Name,
				Icon:        def.Icon,
				Label:       milestoneLabel(def, eval, target, threshold),
				Target:      target,
				ProgressPct: eval.Percent,
				Remaining:   remaining,
			},
			points:  def.Points,
			partial: eval.Percent > 0,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.partial != b.partial {
			return a.partial
		}
		if a.milestone.Remaining != b.milestone.Remaining {
			return a.milestone.Remaining < b.milestone.Remaining
		}
		return a.points > b.points
	})
	top := candidates[0].milestone
	return &top, nil
}

// Insights returns short fixed-vocabulary hints about the user's standing.
func (e *engine) Insights(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var insights []string

	milestone, err := e.NextMilestone(ctx, userID)
	if err != nil {
		return nil, err
	}
	if milestone != nil {
		insights = append(insights, milestone.Label)
	}

	streak, err := e.streaks.Find(ctx, userID, enums.StreakDailyRank)
	if err == nil && streak != nil && streak.CurrentStreak > 0 {
		insights = append(insights, fmt.Sprintf("You're on a %d-day ranking streak. Rank today to keep it alive.", streak.CurrentStreak))
	}

	position, err := e.position.AllTimePosition(ctx, userID)
	if err == nil && position > 0 && position <= 10 {
		insights = append(insights, fmt.Sprintf("You're #%d on the leaderboard.", position))
	}
	return insights, nil
}

// nextTarget returns the next unearned tier and its percent threshold.
func (e *engine) nextTarget(def *models.CoinDefinition, current enums.Tier) (enums.Tier, int, bool) {
	if !def.HasTiers {
		if current == enums.TierComplete {
			return "", 0, false
		}
		return enums.TierComplete, 100, true
	}
	thresholds := e.thresholds(def)
	for _, tier := range enums.TierOrder {
		if tier == enums.TierComplete {
			break
		}
		threshold, ok := thresholds[tier]
		if !ok {
			continue
		}
		if tier.Rank() > current.Rank() {
			return tier, threshold, true
		}
	}
	return "", 0, false
}

// milestoneLabel renders a hint in requirement units where the snapshot
// carries them, otherwise in percent.
func milestoneLabel(def *models.CoinDefinition, eval evaluation, target enums.Tier, threshold int) string {
	if current, required, ok := counterProgress(eval.Progress, "current", "required"); ok {
		needed := int(math.Ceil(float64(required)*float64(threshold)/100)) - current
		if needed > 0 {
			return fmt.Sprintf("%d more to reach %s on %s", needed, target, def.Name)
		}
	}
	if ranked, total, ok := counterProgress(eval.Progress, "ranked", "total"); ok {
		needed := int(math.Ceil(float64(total)*float64(threshold)/100)) - ranked
		if needed > 0 {
			return fmt.Sprintf("Rank %d more to reach %s on %s", needed, target, def.Name)
		}
	}
	return fmt.Sprintf("%.0f%% more to reach %s on %s", float64(threshold)-eval.Percent, target, def.Name)
}

func counterProgress(progress models.JSONMap, currentKey, requiredKey string) (int, int, bool) {
	current, okCurrent := asInt(progress[currentKey])
	required, okRequired := asInt(progress[requiredKey])
	return current, required, okCurrent && okRequired && required > 0
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

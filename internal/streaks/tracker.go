package streaks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// milestoneEvery is the streak length interval that emits a milestone.
const milestoneEvery = 7

// Outcome says what a recorded activity did to the streak.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeContinued Outcome = "continued"
	OutcomeBroken    Outcome = "broken"
	OutcomeUnchanged Outcome = "unchanged"
)

// Result is the streak state after recording one activity.
type Result struct {
	Type      enums.StreakType `json:"type"`
	Current   int              `json:"current"`
	Longest   int              `json:"longest"`
	Outcome   Outcome          `json:"outcome"`
	Previous  int              `json:"previous_streak,omitempty"`
	Milestone int              `json:"milestone,omitempty"`
}

// StreakDTO is one streak row for profile and stats surfaces.
type StreakDTO struct {
	Type             enums.StreakType `json:"type"`
	Current          int              `json:"current"`
	Longest          int              `json:"longest"`
	LastActivityDate *string          `json:"last_activity_date,omitempty"`
}

// Tracker applies the day-over-day streak rules in the configured timezone.
type Tracker interface {
	Record(ctx context.Context, userID uuid.UUID, streakType enums.StreakType, at time.Time) (*Result, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]StreakDTO, error)
}

type tracker struct {
	repo *Repository
	loc  *time.Location
	logg *logger.Logger
}

// NewTracker constructs the streak tracker.
func NewTracker(repo *Repository, cfg config.StreaksConfig, logg *logger.Logger) (Tracker, error) {
	if repo == nil {
		return nil, fmt.Errorf("streaks repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &tracker{repo: repo, loc: cfg.Location(), logg: logg}, nil
}

// Record lands the activity on a wall-clock date and applies the rules:
// same day is a no-op, the day after the last activity continues the streak,
// any longer gap resets it to one.
func (t *tracker) Record(ctx context.Context, userID uuid.UUID, streakType enums.StreakType, at time.Time) (*Result, error) {
	if !streakType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown streak type %q", streakType))
	}

	today := dateOnly(at.In(t.loc))

	row, err := t.repo.Find(ctx, userID, streakType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load streak")
	}

	outcome := OutcomeStarted
	previous := 0
	if row == nil {
		row = &models.Streak{
			UserID:     userID,
			StreakType: streakType,
		}
		row.CurrentStreak = 1
	} else if row.LastActivityDate != nil {
		last := dateOnly(*row.LastActivityDate)
		switch daysBetween(last, today) {
		case 0:
			return &Result{
				Type:    streakType,
				Current: row.CurrentStreak,
				Longest: row.LongestStreak,
				Outcome: OutcomeUnchanged,
			}, nil
		case 1:
			row.CurrentStreak++
			outcome = OutcomeContinued
		default:
			previous = row.CurrentStreak
			row.CurrentStreak = 1
			outcome = OutcomeBroken
		}
	} else {
		row.CurrentStreak = 1
	}

	if row.CurrentStreak > row.LongestStreak {
		row.LongestStreak = row.CurrentStreak
	}
	row.LastActivityDate = &today

	if err := t.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save streak")
	}

	result := &Result{
		Type:     streakType,
		Current:  row.CurrentStreak,
		Longest:  row.LongestStreak,
		Outcome:  outcome,
		Previous: previous,
	}
	if row.CurrentStreak > 0 && row.CurrentStreak%milestoneEvery == 0 && outcome != OutcomeUnchanged {
		result.Milestone = row.CurrentStreak
		ctx = t.logg.WithUserID(ctx, userID.String())
		t.logg.Info(ctx, fmt.Sprintf("streak milestone reached: %d days", row.CurrentStreak))
	}
	return result, nil
}

func (t *tracker) ForUser(ctx context.Context, userID uuid.UUID) ([]StreakDTO, error) {
	rows, err := t.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list streaks")
	}
	dtos := make([]StreakDTO, 0, len(rows))
	for _, row := range rows {
		dto := StreakDTO{
			Type:    row.StreakType,
			Current: row.CurrentStreak,
			Longest: row.LongestStreak,
		}
		if row.LastActivityDate != nil {
			s := row.LastActivityDate.Format("2006-01-02")
			dto.LastActivityDate = &s
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

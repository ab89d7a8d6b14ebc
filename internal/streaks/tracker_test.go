package streaks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

func newTestTracker(t *testing.T) Tracker {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Streak{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tr, err := NewTracker(NewRepository(conn), config.StreaksConfig{Timezone: "UTC"}, logger.New(logger.Options{ServiceName: "streaks-test"}))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tr
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
}

func TestStreakLifecycle(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	userID := uuid.New()

	res, err := tr.Record(ctx, userID, enums.StreakDailyRank, day(1))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Outcome != OutcomeStarted || res.Current != 1 {
		t.Fatalf("expected started/1, got %+v", res)
	}

	// Same day is a no-op.
	res, err = tr.Record(ctx, userID, enums.StreakDailyRank, day(1).Add(5*time.Hour))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Outcome != OutcomeUnchanged || res.Current != 1 {
		t.Fatalf("expected unchanged/1, got %+v", res)
	}

	// Next day continues.
	res, err = tr.Record(ctx, userID, enums.StreakDailyRank, day(2))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Outcome != OutcomeContinued || res.Current != 2 {
		t.Fatalf("expected continued/2, got %+v", res)
	}

	// A gap resets to one but keeps the longest.
	res, err = tr.Record(ctx, userID, enums.StreakDailyRank, day(5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Outcome != OutcomeBroken || res.Current != 1 || res.Longest != 2 || res.Previous != 2 {
		t.Fatalf("expected broken/1 longest 2 previous 2, got %+v", res)
	}
}

func TestStreakMilestone(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	userID := uuid.New()

	var res *Result
	var err error
	for d := 1; d <= 7; d++ {
		res, err = tr.Record(ctx, userID, enums.StreakDailyLogin, day(d))
		if err != nil {
			t.Fatalf("record day %d: %v", d, err)
		}
	}
	if res.Milestone != 7 || res.Current != 7 {
		t.Fatalf("expected milestone 7, got %+v", res)
	}
}

func TestStreakTypesAreIndependent(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := tr.Record(ctx, userID, enums.StreakDailyRank, day(1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	res, err := tr.Record(ctx, userID, enums.StreakDailyLogin, day(1))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Outcome != OutcomeStarted || res.Current != 1 {
		t.Fatalf("expected independent streaks, got %+v", res)
	}

	dtos, err := tr.ForUser(ctx, userID)
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if len(dtos) != 2 {
		t.Fatalf("expected 2 streaks, got %d", len(dtos))
	}
}

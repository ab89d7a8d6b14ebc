package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type fixture struct {
	conn    *gorm.DB
	service Service
	caches  *cache.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.UserCoin{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	logg := logger.New(logger.Options{ServiceName: "leaderboard-test"})
	caches, err := cache.NewRegistry(config.CacheConfig{}, cache.MemoryFactory(), logg, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	svc, err := NewService(NewRepository(conn), caches, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{conn: conn, service: svc, caches: caches}
}

func (f *fixture) seedUser(t *testing.T, first, last string) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FirstName: first,
		LastName:  last,
		Role:      enums.RoleUser,
	}
	if err := f.conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func (f *fixture) seedCoin(t *testing.T, userID uuid.UUID, points int, earnedAt time.Time) {
	t.Helper()
	row := models.UserCoin{
		ID:            uuid.New(),
		UserID:        userID,
		CoinID:        uuid.New(),
		CurrentTier:   enums.TierComplete,
		PointsAwarded: points,
		EarnedAt:      earnedAt,
	}
	if err := f.conn.Create(&row).Error; err != nil {
		t.Fatalf("seed coin: %v", err)
	}
}

func TestTopOrdersByScoreThenEarliestQualifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := f.seedUser(t, "Alice", "Anders")
	bob := f.seedUser(t, "Bob", "Brine")
	cara := f.seedUser(t, "Cara", "Cured")

	f.seedCoin(t, alice, 50, now.Add(-48*time.Hour))
	f.seedCoin(t, alice, 30, now.Add(-24*time.Hour))
	// Bob ties Alice's 80 but got there later.
	f.seedCoin(t, bob, 80, now.Add(-2*time.Hour))
	f.seedCoin(t, cara, 90, now.Add(-1*time.Hour))

	entries, err := f.service.Top(ctx, 10, enums.PeriodAllTime)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].UserID != cara || entries[1].UserID != alice || entries[2].UserID != bob {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[0].Position != 1 || entries[2].Position != 3 {
		t.Fatalf("unexpected positions: %+v", entries)
	}
	if entries[0].DisplayName != "Cara C." {
		t.Fatalf("expected masked display name, got %q", entries[0].DisplayName)
	}
}

func TestPositionAndWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	veteran := f.seedUser(t, "Vera", "Veteran")
	rookie := f.seedUser(t, "Riley", "Rookie")

	// The veteran's points predate the weekly window.
	f.seedCoin(t, veteran, 200, now.Add(-30*24*time.Hour))
	f.seedCoin(t, rookie, 40, now.Add(-time.Hour))

	standing, err := f.service.Position(ctx, veteran, enums.PeriodAllTime)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if standing == nil || standing.Position != 1 || standing.Score != 200 {
		t.Fatalf("expected all-time #1/200, got %+v", standing)
	}

	standing, err = f.service.Position(ctx, veteran, enums.PeriodWeek)
	if err != nil {
		t.Fatalf("position week: %v", err)
	}
	if standing != nil {
		t.Fatalf("expected no weekly standing, got %+v", standing)
	}

	standing, err = f.service.Position(ctx, rookie, enums.PeriodWeek)
	if err != nil {
		t.Fatalf("position week: %v", err)
	}
	if standing == nil || standing.Position != 1 || standing.Score != 40 {
		t.Fatalf("expected weekly #1/40, got %+v", standing)
	}
}

func TestCompareAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	left := f.seedUser(t, "Lou", "Left")
	right := f.seedUser(t, "Rae", "Right")
	f.seedCoin(t, left, 60, now.Add(-time.Hour))

	comparison, err := f.service.Compare(ctx, left, right, enums.PeriodAllTime)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if comparison.Left == nil || comparison.Right != nil || comparison.Delta != 60 {
		t.Fatalf("unexpected comparison %+v", comparison)
	}

	// The cached standing survives a write until invalidated.
	f.seedCoin(t, right, 100, now)
	standing, err := f.service.Position(ctx, right, enums.PeriodAllTime)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if standing != nil {
		t.Fatalf("expected cached nil standing, got %+v", standing)
	}

	if err := f.service.InvalidateUser(ctx, right); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	standing, err = f.service.Position(ctx, right, enums.PeriodAllTime)
	if err != nil {
		t.Fatalf("position after invalidate: %v", err)
	}
	if standing == nil || standing.Score != 100 {
		t.Fatalf("expected fresh standing, got %+v", standing)
	}
}

func TestAllTimePositionForUnrankedUser(t *testing.T) {
	f := newFixture(t)

	position, err := f.service.AllTimePosition(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("all-time position: %v", err)
	}
	if position != 0 {
		t.Fatalf("expected 0 for unranked user, got %d", position)
	}
}

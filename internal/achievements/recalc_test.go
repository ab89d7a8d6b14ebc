package achievements

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type fakeUserLister struct {
	ids []uuid.UUID
}

func (f *fakeUserLister) ListIDs(context.Context) ([]uuid.UUID, error) {
	return f.ids, nil
}

type fakeSubset struct {
	ids []uuid.UUID
}

func (f *fakeSubset) UserIDs(context.Context) ([]uuid.UUID, error) {
	return f.ids, nil
}

type memoryFlags struct {
	cancelled map[string]bool
}

func newMemoryFlags() *memoryFlags {
	return &memoryFlags{cancelled: map[string]bool{}}
}

func (f *memoryFlags) IsCancelled(_ context.Context, code string) (bool, error) {
	return f.cancelled[code], nil
}

func (f *memoryFlags) SetCancelled(_ context.Context, code string) error {
	f.cancelled[code] = true
	return nil
}

func (f *memoryFlags) Clear(_ context.Context, code string) error {
	delete(f.cancelled, code)
	return nil
}

// perUserRankings returns a different rank count per user so a sweep awards
// some users and skips others.
type perUserRankings struct {
	counts map[uuid.UUID]int64
}

func (f *perUserRankings) CountByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	return f.counts[userID], nil
}

func (f *perUserRankings) RankedProductIDs(context.Context, uuid.UUID) ([]string, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) *cache.Registry {
	t.Helper()
	registry, err := cache.NewRegistry(config.CacheConfig{}, cache.MemoryFactory(), logger.New(logger.Options{ServiceName: "recalc-test"}), nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func TestRecalculateSweepsRankingUsers(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	qualified := uuid.New()
	unqualified := uuid.New()
	rankers := &perUserRankings{counts: map[uuid.UUID]int64{qualified: 10, unqualified: 2}}

	eng, err := NewEngine(f.repo, rankers, f.activity, f.streaks, f.users, f.products, f.position, logger.New(logger.Options{ServiceName: "recalc-test"}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	f.createDefinition(t, models.CoinDefinition{
		Code:             "rank-ten",
		Name:             "Rank Ten",
		CollectionType:   enums.CollectionEngagement,
		RequirementType:  enums.RequirementRankCount,
		RequirementValue: 10,
		Points:           20,
	})

	recalc, err := NewRecalculator(
		f.repo,
		eng,
		&fakeUserLister{},
		&fakeSubset{ids: []uuid.UUID{qualified, unqualified}},
		&fakeSubset{},
		newMemoryFlags(),
		newTestRegistry(t),
		logger.New(logger.Options{ServiceName: "recalc-test"}),
	)
	if err != nil {
		t.Fatalf("new recalculator: %v", err)
	}

	summary, err := recalc.Recalculate(ctx, "rank-ten")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if summary.Total != 2 || summary.Processed != 2 {
		t.Fatalf("expected 2/2 processed, got %d/%d", summary.Total, summary.Processed)
	}
	if summary.NewAwards != 1 || summary.TierUpgrades != 0 {
		t.Fatalf("expected one new award, got %+v", summary)
	}

	// A second run with no state change awards nothing.
	summary, err = recalc.Recalculate(ctx, "rank-ten")
	if err != nil {
		t.Fatalf("recalculate again: %v", err)
	}
	if summary.NewAwards != 0 || summary.TierUpgrades != 0 {
		t.Fatalf("expected idempotent rerun, got %+v", summary)
	}
}

func TestRecalculateUnknownCoin(t *testing.T) {
	f := newEngineFixture(t)

	recalc, err := NewRecalculator(
		f.repo,
		f.engine,
		&fakeUserLister{},
		&fakeSubset{},
		&fakeSubset{},
		newMemoryFlags(),
		newTestRegistry(t),
		logger.New(logger.Options{ServiceName: "recalc-test"}),
	)
	if err != nil {
		t.Fatalf("new recalculator: %v", err)
	}

	if _, err := recalc.Recalculate(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown coin")
	}
}

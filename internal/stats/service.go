package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// UserStats is the batched home-surface snapshot. It is assembled in one
// call so achievement evaluation and the home screen read consistent inputs.
type UserStats struct {
	TotalRankings int64 `json:"total_rankings"`
	UniqueFlavors int   `json:"unique_flavors"`
	UniqueAnimals int   `json:"unique_animals"`
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	Position      int   `json:"position"`
	TotalPoints   int64 `json:"total_points"`
	TotalRankable int   `json:"total_rankable"`
}

type rankingReader interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	RankedProductIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type metadataReader interface {
	MetadataByIDs(ctx context.Context, productIDs []string) (map[string]models.ProductMetadata, error)
	AllProductIDs(ctx context.Context) ([]string, error)
}

type streakReader interface {
	Find(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (*models.Streak, error)
}

type standingReader interface {
	AllTimePosition(ctx context.Context, userID uuid.UUID) (int, error)
}

type scoreReader interface {
	TotalPoints(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Aggregator batches a user's gamification stats behind the home-stats cache.
type Aggregator interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type aggregator struct {
	rankings rankingReader
	metadata metadataReader
	streaks  streakReader
	standing standingReader
	scores   scoreReader
	caches   *cache.Registry
	logg     *logger.Logger
}

// NewAggregator constructs the user stats aggregator.
func NewAggregator(rankings rankingReader, metadata metadataReader, streaks streakReader, standing standingReader, scores scoreReader, caches *cache.Registry, logg *logger.Logger) (Aggregator, error) {
	if rankings == nil {
		return nil, fmt.Errorf("ranking reader required")
	}
	if metadata == nil {
		return nil, fmt.Errorf("metadata reader required")
	}
	if streaks == nil {
		return nil, fmt.Errorf("streak reader required")
	}
	if standing == nil {
		return nil, fmt.Errorf("standing reader required")
	}
	if scores == nil {
		return nil, fmt.Errorf("score reader required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &aggregator{
		rankings: rankings,
		metadata: metadata,
		streaks:  streaks,
		standing: standing,
		scores:   scores,
		caches:   caches,
		logg:     logg,
	}, nil
}

// ForUser returns the cached snapshot, computing it on miss.
func (a *aggregator) ForUser(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	var stats UserStats
	_, err := a.caches.HomeStats.GetOrFill(ctx, cache.HomeStatsUserKey(userID.String()), &stats, func(ctx context.Context) (any, error) {
		return a.compute(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Invalidate drops the user's cached snapshot.
func (a *aggregator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return a.caches.HomeStats.Invalidate(ctx, cache.HomeStatsUserKey(userID.String()))
}

func (a *aggregator) compute(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	stats := &UserStats{}

	total, err := a.rankings.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count rankings")
	}
	stats.TotalRankings = total

	ranked, err := a.rankings.RankedProductIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ranked products")
	}
	metadata, err := a.metadata.MetadataByIDs(ctx, ranked)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product metadata")
	}
	flavors := map[string]struct{}{}
	animals := map[string]struct{}{}
	for _, meta := range metadata {
		if meta.FlavorPrimary != "" {
			flavors[meta.FlavorPrimary] = struct{}{}
		}
		if meta.AnimalType != "" {
			animals[meta.AnimalType] = struct{}{}
		}
	}
	stats.UniqueFlavors = len(flavors)
	stats.UniqueAnimals = len(animals)

	rankable, err := a.metadata.AllProductIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count rankable products")
	}
	stats.TotalRankable = len(rankable)

	streak, err := a.streaks.Find(ctx, userID, enums.StreakDailyRank)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find streak")
	}
	if streak != nil {
		stats.CurrentStreak = streak.CurrentStreak
		stats.LongestStreak = streak.LongestStreak
	}

	position, err := a.standing.AllTimePosition(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read leaderboard position")
	}
	stats.Position = position

	points, err := a.scores.TotalPoints(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum points")
	}
	stats.TotalPoints = points

	return stats, nil
}

package rankings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/internal/realtime"
	"github.com/jerkyranks/jerkyranks-backend/internal/stats"
	"github.com/jerkyranks/jerkyranks-backend/internal/streaks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	dbpkg "github.com/jerkyranks/jerkyranks-backend/pkg/db"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// Service orchestrates the ranking-save hot path: duplicate rejection, the
// transactional list swap, cache coherence, and the asynchronous
// gamification side effects.
type Service interface {
	SaveList(ctx context.Context, userID uuid.UUID, listID, opID string, items []RankingInput) (*SaveResult, error)
	GetList(ctx context.Context, userID uuid.UUID, listID string) ([]RankingDTO, error)
	ClearList(ctx context.Context, userID uuid.UUID, listID string) error
}

type streakTracker interface {
	Record(ctx context.Context, userID uuid.UUID, streakType enums.StreakType, at time.Time) (*streaks.Result, error)
}

type statsAggregator interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type coinEvaluator interface {
	EvaluateAll(ctx context.Context, userID uuid.UUID) ([]achievements.Award, error)
}

type boardInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

type activityLogger interface {
	Log(ctx context.Context, userID uuid.UUID, activityType enums.ActivityType, payload models.JSONMap) error
}

type broadcaster interface {
	BroadcastToUser(ctx context.Context, userID uuid.UUID, envelope realtime.Envelope)
	BroadcastToRoom(ctx context.Context, room string, envelope realtime.Envelope)
}

type service struct {
	repo     *Repository
	client   *dbpkg.Client
	caches   *cache.Registry
	streaks  streakTracker
	stats    statsAggregator
	coins    coinEvaluator
	boards   boardInvalidator
	activity activityLogger
	gateway  broadcaster
	logg     *logger.Logger
	now      func() time.Time
	// runAsync decouples side effects from the response; tests run them
	// inline.
	runAsync func(fn func())
}

// NewService constructs the rankings orchestrator.
func NewService(repo *Repository, client *dbpkg.Client, caches *cache.Registry, streakTracker streakTracker, aggregator statsAggregator, coins coinEvaluator, boards boardInvalidator, activity activityLogger, gateway broadcaster, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rankings repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if streakTracker == nil {
		return nil, fmt.Errorf("streak tracker required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("stats aggregator required")
	}
	if coins == nil {
		return nil, fmt.Errorf("coin evaluator required")
	}
	if boards == nil {
		return nil, fmt.Errorf("leaderboard invalidator required")
	}
	if activity == nil {
		return nil, fmt.Errorf("activity logger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		client:   client,
		caches:   caches,
		streaks:  streakTracker,
		stats:    aggregator,
		coins:    coins,
		boards:   boards,
		activity: activity,
		gateway:  gateway,
		logg:     logg,
		now:      time.Now,
		runAsync: func(fn func()) { go fn() },
	}, nil
}

// SaveList validates, swaps the list transactionally, invalidates the caches
// the write dirtied, and kicks off the gamification side effects after the
// response is already decided.
func (s *service) SaveList(ctx context.Context, userID uuid.UUID, listID, opID string, items []RankingInput) (*SaveResult, error) {
	if listID == "" {
		listID = models.DefaultListID
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one ranking is required")
	}
	if duplicates := duplicateProductIDs(items); len(duplicates) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product ids in payload").
			WithDetails(map[string]any{"duplicates": duplicates})
	}

	rows := make([]models.Ranking, 0, len(items))
	for i, item := range items {
		position := item.Rank
		if position <= 0 {
			position = i + 1
		}
		rows = append(rows, models.Ranking{
			UserID:    userID,
			ProductID: item.ProductID,
			ListID:    listID,
			Position:  position,
		})
	}

	alreadyProcessed := false
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if opID != "" {
			op := &models.RankingOperation{
				OpID:   opID,
				UserID: userID,
				ListID: listID,
				Rank:   len(rows),
				Status: "applied",
			}
			if err := repo.RecordOperation(ctx, op); err != nil {
				if dbpkg.IsUniqueViolation(err, "ux_ranking_operations_op_id") {
					alreadyProcessed = true
					return nil
				}
				return err
			}
		}
		return repo.ReplaceList(ctx, userID, listID, rows)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save rankings")
	}
	if alreadyProcessed {
		return &SaveResult{Saved: 0, AlreadyProcessed: true}, nil
	}

	s.invalidateAfterWrite(ctx, userID)

	s.runAsync(func() {
		s.afterSave(userID, rows)
	})
	return &SaveResult{Saved: len(rows)}, nil
}

// GetList returns the user's list ordered by position.
func (s *service) GetList(ctx context.Context, userID uuid.UUID, listID string) ([]RankingDTO, error) {
	if listID == "" {
		listID = models.DefaultListID
	}
	rows, err := s.repo.ListByUser(ctx, userID, listID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rankings")
	}
	out := make([]RankingDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// ClearList removes the user's list and re-runs coherence the same way a
// save does.
func (s *service) ClearList(ctx context.Context, userID uuid.UUID, listID string) error {
	if listID == "" {
		listID = models.DefaultListID
	}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ClearList(ctx, userID, listID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear rankings")
	}

	s.invalidateAfterWrite(ctx, userID)

	s.runAsync(func() {
		ctx := s.logg.WithUserID(context.Background(), userID.String())
		if err := s.activity.Log(ctx, userID, enums.ActivityRankingsCleared, models.JSONMap{"list_id": listID}); err != nil {
			s.logg.Error(ctx, "activity log failed", err)
		}
	})
	return nil
}

// invalidateAfterWrite drops the four caches a ranking write dirties.
// Failures are logged; entries age out on TTL.
func (s *service) invalidateAfterWrite(ctx context.Context, userID uuid.UUID) {
	targets := []struct {
		name    string
		cache   *cache.Cache
		pattern string
	}{
		{"ranking_stats", s.caches.RankingStats, "*"},
		{"leaderboard_position", s.caches.LeaderboardPosition, cache.UserPattern(userID.String())},
		{"leaderboard", s.caches.Leaderboard, "*"},
		{"home_stats", s.caches.HomeStats, cache.HomeStatsUserKey(userID.String())},
	}
	for _, target := range targets {
		if err := target.cache.Invalidate(ctx, target.pattern); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "cache", target.name), "cache invalidation failed after ranking write", err)
		}
	}
}

// afterSave runs the asynchronous side effects of a successful bulk save.
// The response is already on the wire; every failure here is logged and
// swallowed.
func (s *service) afterSave(userID uuid.UUID, rows []models.Ranking) {
	ctx := s.logg.WithUserID(context.Background(), userID.String())

	s.recordStreak(ctx, userID)
	s.refreshStats(ctx, userID)
	s.evaluateCoins(ctx, userID)
	s.publishActivity(ctx, userID, rows)
}

func (s *service) recordStreak(ctx context.Context, userID uuid.UUID) {
	result, err := s.streaks.Record(ctx, userID, enums.StreakDailyRank, s.now())
	if err != nil {
		s.logg.Error(ctx, "streak update failed", err)
		return
	}

	s.gateway.BroadcastToUser(ctx, userID, realtime.Envelope{
		Event: realtime.EventStreakUpdated,
		Data:  result,
	})
	if result.Milestone == 0 {
		return
	}
	if err := s.activity.Log(ctx, userID, enums.ActivityStreakMilestone, models.JSONMap{"days": result.Milestone}); err != nil {
		s.logg.Error(ctx, "activity log failed", err)
	}
	s.gateway.BroadcastToRoom(ctx, realtime.RoomActivityFeed, realtime.Envelope{
		Event: realtime.EventActivityNew,
		Data: map[string]any{
			"type": enums.ActivityStreakMilestone,
			"user": userID,
			"data": map[string]any{"days": result.Milestone},
		},
	})
}

func (s *service) refreshStats(ctx context.Context, userID uuid.UUID) {
	if err := s.stats.Invalidate(ctx, userID); err != nil {
		s.logg.Error(ctx, "stats invalidation failed", err)
	}
	if _, err := s.stats.ForUser(ctx, userID); err != nil {
		s.logg.Error(ctx, "stats aggregation failed", err)
	}
}

func (s *service) evaluateCoins(ctx context.Context, userID uuid.UUID) {
	awards, err := s.coins.EvaluateAll(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "coin evaluation failed", err)
		return
	}
	if len(awards) == 0 {
		return
	}

	for _, award := range awards {
		s.gateway.BroadcastToUser(ctx, userID, realtime.Envelope{
			Event: realtime.EventCoinEarned,
			Data:  award,
		})
		if award.Collection.IsCollection() {
			s.gateway.BroadcastToUser(ctx, userID, realtime.Envelope{
				Event: realtime.EventCollectionsUpdated,
				Data:  map[string]any{"code": award.Code},
			})
		}
		s.gateway.BroadcastToRoom(ctx, realtime.RoomActivityFeed, realtime.Envelope{
			Event: realtime.EventActivityNew,
			Data: map[string]any{
				"type": enums.ActivityCoinEarned,
				"user": userID,
				"data": map[string]any{"code": award.Code, "tier": award.NewTier},
			},
		})
	}

	// New awards shift engagement scores; drop the score-derived caches a
	// second time.
	if err := s.caches.HomeStats.Invalidate(ctx, cache.HomeStatsUserKey(userID.String())); err != nil {
		s.logg.Error(ctx, "home stats invalidation failed", err)
	}
	if err := s.boards.InvalidateUser(ctx, userID); err != nil {
		s.logg.Error(ctx, "leaderboard invalidation failed", err)
	}
	s.gateway.BroadcastToRoom(ctx, realtime.RoomLeaderboard, realtime.Envelope{
		Event: realtime.EventLeaderboardUpdated,
		Data:  map[string]any{"user": userID},
	})
}

func (s *service) publishActivity(ctx context.Context, userID uuid.UUID, rows []models.Ranking) {
	for _, row := range rows {
		payload := models.JSONMap{"product_id": row.ProductID, "position": row.Position, "list_id": row.ListID}
		if err := s.activity.Log(ctx, userID, enums.ActivityProductRanked, payload); err != nil {
			s.logg.Error(ctx, "activity log failed", err)
			continue
		}
		s.gateway.BroadcastToRoom(ctx, realtime.RoomActivityFeed, realtime.Envelope{
			Event: realtime.EventActivityNew,
			Data: map[string]any{
				"type": enums.ActivityProductRanked,
				"user": userID,
				"data": payload,
			},
		})
	}
}

func duplicateProductIDs(items []RankingInput) []string {
	seen := make(map[string]int, len(items))
	var duplicates []string
	for _, item := range items {
		seen[item.ProductID]++
		if seen[item.ProductID] == 2 {
			duplicates = append(duplicates, item.ProductID)
		}
	}
	return duplicates
}

package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

const (
	defaultTopN = 10
	maxTopN     = 100

	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// Entry is one leaderboard position.
type Entry struct {
	Position    int       `json:"position"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       int64     `json:"score"`
}

// Standing is one user's rank and score in a window. Nil when the user holds
// no points there.
type Standing struct {
	Position int                     `json:"position"`
	Score    int64                   `json:"score"`
	Period   enums.LeaderboardPeriod `json:"period"`
}

// Comparison pairs two users' standings in the same window.
type Comparison struct {
	Period enums.LeaderboardPeriod `json:"period"`
	Left   *Standing               `json:"left"`
	Right  *Standing               `json:"right"`
	// Delta is left score minus right score; missing standings count as zero.
	Delta int64 `json:"delta"`
}

// Service serves engagement leaderboards with per-window caching.
type Service interface {
	Top(ctx context.Context, n int, period enums.LeaderboardPeriod) ([]Entry, error)
	Position(ctx context.Context, userID uuid.UUID, period enums.LeaderboardPeriod) (*Standing, error)
	Compare(ctx context.Context, left, right uuid.UUID, period enums.LeaderboardPeriod) (*Comparison, error)
	AllTimePosition(ctx context.Context, userID uuid.UUID) (int, error)
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo   *Repository
	caches *cache.Registry
	logg   *logger.Logger
	now    func() time.Time
}

// NewService constructs the leaderboard service.
func NewService(repo *Repository, caches *cache.Registry, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("leaderboard repository required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, caches: caches, logg: logg, now: time.Now}, nil
}

// windowStart returns the earn cutoff for the period, nil for all-time.
func (s *service) windowStart(period enums.LeaderboardPeriod) *time.Time {
	var cutoff time.Time
	switch period {
	case enums.PeriodWeek:
		cutoff = s.now().Add(-weekWindow)
	case enums.PeriodMonth:
		cutoff = s.now().Add(-monthWindow)
	default:
		return nil
	}
	return &cutoff
}

// Top returns the highest-scoring users for the period.
func (s *service) Top(ctx context.Context, n int, period enums.LeaderboardPeriod) ([]Entry, error) {
	if !period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", period))
	}
	if n <= 0 {
		n = defaultTopN
	}
	if n > maxTopN {
		n = maxTopN
	}

	var entries []Entry
	_, err := s.caches.Leaderboard.GetOrFill(ctx, cache.LeaderboardTopKey(string(period), n), &entries, func(ctx context.Context) (any, error) {
		return s.loadTop(ctx, n, period)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *service) loadTop(ctx context.Context, n int, period enums.LeaderboardPeriod) ([]Entry, error) {
	rows, err := s.repo.TopScores(ctx, s.windowStart(period), n)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load top scores")
	}
	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	names, err := s.repo.DisplayNames(ctx, userIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve display names")
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Position:    i + 1,
			UserID:      row.UserID,
			DisplayName: names[row.UserID],
			Score:       row.Score,
		})
	}
	return entries, nil
}

// Position returns the user's rank and score, nil when the user holds no
// points in the window.
func (s *service) Position(ctx context.Context, userID uuid.UUID, period enums.LeaderboardPeriod) (*Standing, error) {
	if !period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", period))
	}

	var standing *Standing
	_, err := s.caches.LeaderboardPosition.GetOrFill(ctx, cache.PositionKey(userID.String(), string(period)), &standing, func(ctx context.Context) (any, error) {
		return s.loadStanding(ctx, userID, period)
	})
	if err != nil {
		return nil, err
	}
	return standing, nil
}

func (s *service) loadStanding(ctx context.Context, userID uuid.UUID, period enums.LeaderboardPeriod) (*Standing, error) {
	since := s.windowStart(period)
	row, err := s.repo.UserScore(ctx, userID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user score")
	}
	if row == nil {
		return (*Standing)(nil), nil
	}
	position, err := s.repo.RankOf(ctx, row, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rank user score")
	}
	return &Standing{Position: position, Score: row.Score, Period: period}, nil
}

// Compare pairs two users' standings in the same window.
func (s *service) Compare(ctx context.Context, left, right uuid.UUID, period enums.LeaderboardPeriod) (*Comparison, error) {
	leftStanding, err := s.Position(ctx, left, period)
	if err != nil {
		return nil, err
	}
	rightStanding, err := s.Position(ctx, right, period)
	if err != nil {
		return nil, err
	}

	comparison := &Comparison{Period: period, Left: leftStanding, Right: rightStanding}
	if leftStanding != nil {
		comparison.Delta += leftStanding.Score
	}
	if rightStanding != nil {
		comparison.Delta -= rightStanding.Score
	}
	return comparison, nil
}

// AllTimePosition reports the user's all-time rank without caching, zero when
// unranked. The achievement engine reads this during evaluation.
func (s *service) AllTimePosition(ctx context.Context, userID uuid.UUID) (int, error) {
	row, err := s.repo.UserScore(ctx, userID, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user score")
	}
	if row == nil {
		return 0, nil
	}
	return s.repo.RankOf(ctx, row, nil)
}

// InvalidateUser drops the user's cached positions and every cached top
// slice, which all shift when a user's score changes.
func (s *service) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.caches.LeaderboardPosition.Invalidate(ctx, cache.UserPattern(userID.String())); err != nil {
		return err
	}
	return s.caches.Leaderboard.Invalidate(ctx, "*")
}

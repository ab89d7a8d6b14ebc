package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository aggregates engagement scores out of earned user coins.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a leaderboard repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ScoreRow is one user's aggregated engagement score. QualifiedAt is the
// earn that brought the user to this score, used for tie-breaking: equal
// scores rank the user who got there first ahead.
type ScoreRow struct {
	UserID      uuid.UUID `gorm:"column:user_id"`
	Score       int64     `gorm:"column:score"`
	QualifiedAt time.Time `gorm:"column:qualified_at"`
}

func (r *Repository) scoped(ctx context.Context, since *time.Time) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.UserCoin{}).
		Select("user_id, SUM(points_awarded) AS score, MAX(earned_at) AS qualified_at").
		Group("user_id")
	if since != nil {
		query = query.Where("earned_at >= ?", *since)
	}
	return query
}

// TopScores returns the highest-scoring users in the window, ties broken by
// earliest qualifying earn.
func (r *Repository) TopScores(ctx context.Context, since *time.Time, limit int) ([]ScoreRow, error) {
	var rows []ScoreRow
	err := r.scoped(ctx, since).
		Order("score DESC, qualified_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UserScore returns one user's score row in the window, nil when the user
// holds no points there.
func (r *Repository) UserScore(ctx context.Context, userID uuid.UUID, since *time.Time) (*ScoreRow, error) {
	var rows []ScoreRow
	err := r.scoped(ctx, since).
		Where("user_id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].Score == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// RankOf counts how many users outrank the given score row and returns the
// one-based position.
func (r *Repository) RankOf(ctx context.Context, row *ScoreRow, since *time.Time) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).
		Table("(?) AS scores", r.scoped(ctx, since)).
		Where("score > ? OR (score = ? AND qualified_at < ?)", row.Score, row.Score, row.QualifiedAt).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// TotalPoints sums the user's lifetime awarded points.
func (r *Repository) TotalPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.UserCoin{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points_awarded), 0)").
		Scan(&total).Error
	return total, err
}

// DisplayNames resolves first name and last initial for the given users.
func (r *Repository) DisplayNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, user := range users {
		name := user.FirstName
		if len(user.LastName) > 0 {
			name += " " + user.LastName[:1] + "."
		}
		names[user.ID] = name
	}
	return names, nil
}

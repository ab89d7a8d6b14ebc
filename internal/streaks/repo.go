package streaks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// Repository persists per-user streak rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a streaks repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Find returns the streak row for (user, type), nil when none exists yet.
func (r *Repository) Find(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (*models.Streak, error) {
	var row models.Streak
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND streak_type = ?", userID, streakType).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Save inserts or updates the streak row. New rows get their id assigned
// here so Save can tell inserts from updates.
func (r *Repository) Save(ctx context.Context, row *models.Streak) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(row).Error
}

// ListByUser returns every streak the user holds.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Streak, error) {
	var rows []models.Streak
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

package rankings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository persists ranking rows. The bulk save path replaces a whole
// list inside one transaction, so partial lists are never observable.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a rankings repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ReplaceList deletes the user's list and inserts the new rows. Callers run
// it inside a transaction via WithTx.
func (r *Repository) ReplaceList(ctx context.Context, userID uuid.UUID, listID string, rows []models.Ranking) error {
	q := r.db.WithContext(ctx)
	if err := q.Where("user_id = ? AND list_id = ?", userID, listID).
		Delete(&models.Ranking{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return q.Create(&rows).Error
}

// ClearList removes every ranking on the user's list.
func (r *Repository) ClearList(ctx context.Context, userID uuid.UUID, listID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND list_id = ?", userID, listID).
		Delete(&models.Ranking{}).Error
}

// ListByUser returns the user's list ordered by position.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, listID string) ([]models.Ranking, error) {
	var rows []models.Ranking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND list_id = ?", userID, listID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByUser counts distinct products the user has ranked across lists.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ranking{}).
		Where("user_id = ?", userID).
		Distinct("product_id").
		Count(&count).Error
	return count, err
}

// RankedProductIDs returns the distinct products the user has ranked.
func (r *Repository) RankedProductIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Ranking{}).
		Where("user_id = ?", userID).
		Distinct("product_id").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UserIDs returns the ids of users holding at least one ranking, used to
// scope recalculation sweeps for ranking-based coins.
func (r *Repository) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Ranking{}).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ProductStat aggregates community ranking signal for one product.
type ProductStat struct {
	ProductID     string          `gorm:"column:product_id"`
	TimesRanked   int64           `gorm:"column:times_ranked"`
	UniqueRankers int64           `gorm:"column:unique_rankers"`
	AverageRank   decimal.Decimal `gorm:"column:average_rank"`
	BestRank      int             `gorm:"column:best_rank"`
	WorstRank     int             `gorm:"column:worst_rank"`
	LastRankedAt  *time.Time      `gorm:"column:last_ranked_at"`
}

// StatsForProducts aggregates community positions for the given products
// across all users.
func (r *Repository) StatsForProducts(ctx context.Context, productIDs []string) (map[string]ProductStat, error) {
	if len(productIDs) == 0 {
		return map[string]ProductStat{}, nil
	}

	var rows []ProductStat
	err := r.db.WithContext(ctx).
		Model(&models.Ranking{}).
		Select("product_id, COUNT(*) AS times_ranked, COUNT(DISTINCT user_id) AS unique_rankers, AVG(position) AS average_rank, MIN(position) AS best_rank, MAX(position) AS worst_rank, MAX(created_at) AS last_ranked_at").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]ProductStat, len(rows))
	for _, row := range rows {
		stats[row.ProductID] = row
	}
	return stats, nil
}

// RecordOperation stores the idempotency row for one ranking action.
// Duplicate op ids surface as a unique violation the caller treats as
// already-processed.
func (r *Repository) RecordOperation(ctx context.Context, op *models.RankingOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	"github.com/jerkyranks/jerkyranks-backend/pkg/pagination"
)

// Repository persists activity rows and answers the counter queries the
// achievement engine evaluates against.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an activity repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Log appends one activity row. Rows are never updated or backdated.
func (r *Repository) Log(ctx context.Context, userID uuid.UUID, activityType enums.ActivityType, payload models.JSONMap) error {
	row := &models.ActivityLog{
		UserID:       userID,
		ActivityType: activityType,
		Payload:      payload,
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// RecordProductView appends a product view row.
func (r *Repository) RecordProductView(ctx context.Context, userID uuid.UUID, productID string) error {
	return r.db.WithContext(ctx).Create(&models.ProductView{
		UserID:    userID,
		ProductID: productID,
	}).Error
}

// RecordPageView appends a page view row.
func (r *Repository) RecordPageView(ctx context.Context, userID uuid.UUID, path string) error {
	return r.db.WithContext(ctx).Create(&models.PageView{
		UserID: userID,
		Path:   path,
	}).Error
}

// RecordProfileView appends a profile view row.
func (r *Repository) RecordProfileView(ctx context.Context, userID, profileUserID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&models.ProfileView{
		UserID:        userID,
		ProfileUserID: profileUserID,
	}).Error
}

// CountByType counts a user's activity rows of one type.
func (r *Repository) CountByType(ctx context.Context, userID uuid.UUID, activityType enums.ActivityType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("user_id = ? AND activity_type = ?", userID, activityType).
		Count(&count).Error
	return count, err
}

// CountProductViews counts every product view by the user.
func (r *Repository) CountProductViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductView{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountDistinctProductViews counts how many distinct products the user has
// viewed.
func (r *Repository) CountDistinctProductViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductView{}).
		Where("user_id = ?", userID).
		Distinct("product_id").
		Count(&count).Error
	return count, err
}

// CountPageViews counts every page view by the user.
func (r *Repository) CountPageViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PageView{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountProfileViews counts profile views made by the user.
func (r *Repository) CountProfileViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProfileView{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountDistinctProfileViews counts how many distinct profiles the user has
// viewed.
func (r *Repository) CountDistinctProfileViews(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProfileView{}).
		Where("user_id = ?", userID).
		Distinct("profile_user_id").
		Count(&count).Error
	return count, err
}

// ActiveSince returns the ids of users with any activity at or after the
// cutoff, used to scope recalculation sweeps.
func (r *Repository) ActiveSince(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Where("created_at >= ?", cutoff).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UserIDs returns the ids of users with at least one activity row, used to
// scope recalculation sweeps for activity-based coins.
func (r *Repository) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ActivityLog{}).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Feed returns one page of a user's activity, newest first.
func (r *Repository) Feed(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ActivityLog, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ActivityLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

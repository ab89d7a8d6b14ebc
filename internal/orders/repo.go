package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository persists purchased line items. The purchased set drives rank
// eligibility and order-cancellation recalculation.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an orders repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// UpsertItems writes the order's line items. Replays of the same webhook
// land on the same (user, order, product) rows.
func (r *Repository) UpsertItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "order_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "fulfillment_status", "cancelled", "updated_at",
			}),
		}).
		Create(&items).Error
}

// CancelOrder flags every line item on the order as cancelled and returns
// the affected user ids so coin recalculation can be scoped.
func (r *Repository) CancelOrder(ctx context.Context, orderID string) ([]uuid.UUID, error) {
	var userIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ?", orderID).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"cancelled": true, "updated_at": time.Now()}).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

// PurchasedProductIDs returns the distinct products the user has bought on
// non-cancelled orders.
func (r *Repository) PurchasedProductIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("user_id = ? AND cancelled = ?", userID, false).
		Distinct("product_id").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FirstOrderDate returns when the user first purchased, nil when they never
// have. join_before coins evaluate against it.
func (r *Repository) FirstOrderDate(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var row models.OrderItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND cancelled = ?", userID, false).
		Order("order_date ASC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row.OrderDate, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultListID is the ranking list users fill by default.
const DefaultListID = "default"

// Ranking places one product at one position on a user's list. A bulk save
// clears the list and inserts the new set.
type Ranking struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_rankings_user_product_list;index:ix_rankings_user_list"`
	ProductID string    `gorm:"column:product_id;not null;uniqueIndex:ux_rankings_user_product_list;index"`
	ListID    string    `gorm:"column:list_id;not null;default:default;uniqueIndex:ux_rankings_user_product_list;index:ix_rankings_user_list"`
	Position  int       `gorm:"column:position;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RankingOperation is the idempotency token for a single ranking action.
type RankingOperation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OpID      string    `gorm:"column:op_id;not null;uniqueIndex"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID string    `gorm:"column:product_id;not null"`
	ListID    string    `gorm:"column:list_id;not null;default:default"`
	Rank      int       `gorm:"column:rank;not null"`
	Status    string    `gorm:"column:status;not null;default:pending"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderItem records a purchased product; the purchased set feeds rank
// eligibility and order-cancellation recalculation.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_order_items_user_order_product;index:ix_order_items_user_product"`
	OrderID           string    `gorm:"column:order_id;not null;uniqueIndex:ux_order_items_user_order_product"`
	ProductID         string    `gorm:"column:product_id;not null;uniqueIndex:ux_order_items_user_order_product;index:ix_order_items_user_product"`
	Quantity          int       `gorm:"column:quantity;not null;default:1"`
	FulfillmentStatus string    `gorm:"column:fulfillment_status;not null;default:unfulfilled"`
	Cancelled         bool      `gorm:"column:cancelled;not null;default:false"`
	OrderDate         time.Time `gorm:"column:order_date;not null;index"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

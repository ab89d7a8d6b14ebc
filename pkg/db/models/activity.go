package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// ActivityLog is an append-only record of user actions. No backdating.
type ActivityLog struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index:ix_activity_user_type"`
	ActivityType enums.ActivityType `gorm:"column:activity_type;not null;index:ix_activity_user_type"`
	Payload      JSONMap            `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime;index"`
}

// ProductView is an append-only view counter row used by trending and coin
// requirements.
type ProductView struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:ix_product_views_user_product"`
	ProductID string    `gorm:"column:product_id;not null;index:ix_product_views_user_product"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// PageView is an append-only page counter row.
type PageView struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Path      string    `gorm:"column:path;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// ProfileView is an append-only record of one user viewing another's profile.
type ProfileView struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:ix_profile_views_user_profile"`
	ProfileUserID   uuid.UUID `gorm:"column:profile_user_id;type:uuid;not null;index:ix_profile_views_user_profile"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// Streak tracks consecutive daily activity per (user, streak_type).
// LastActivityDate holds a wall-clock date in the configured streak zone.
type Streak struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_streaks_user_type"`
	StreakType       enums.StreakType `gorm:"column:streak_type;not null;uniqueIndex:ux_streaks_user_type"`
	CurrentStreak    int              `gorm:"column:current_streak;not null;default:0"`
	LongestStreak    int              `gorm:"column:longest_streak;not null;default:0"`
	LastActivityDate *time.Time       `gorm:"column:last_activity_date;type:date"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

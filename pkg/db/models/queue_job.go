package models

import (
	"time"

	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// QueueJob is a durable row in the webhook or coin-recalculation queue.
// The id is {type}:{topic}:{enqueue_nanos}; the sender's retries are not
// de-duplicated here, workers absorb them idempotently.
type QueueJob struct {
	ID       string          `gorm:"column:id;primaryKey"`
	Type     enums.JobType   `gorm:"column:type;not null;index:ix_queue_jobs_claim"`
	Topic    string          `gorm:"column:topic;not null"`
	Priority int             `gorm:"column:priority;not null;default:3;index:ix_queue_jobs_claim"`
	Status   enums.JobStatus `gorm:"column:status;not null;default:waiting;index:ix_queue_jobs_claim"`
	Payload  JSONMap         `gorm:"column:payload;type:jsonb"`

	Attempts    int        `gorm:"column:attempts;not null;default:0"`
	MaxAttempts int        `gorm:"column:max_attempts;not null;default:3"`
	RunAt       time.Time  `gorm:"column:run_at;not null;index"`
	LastError   string     `gorm:"column:last_error"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/jerkyranks/jerkyranks-backend/pkg/db"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/metrics"
)

// Options configures a durable queue.
type Options struct {
	DB          *dbpkg.Client
	Logger      *logger.Logger
	Metrics     *metrics.QueueMetrics
	MaxAttempts int
	BackoffBase time.Duration

	CompletedMaxAge  time.Duration
	CompletedMaxKeep int
	FailedMaxAge     time.Duration
	FailedMaxKeep    int
}

// Queue is a durable, priority-ordered job queue backed by the jobs table.
// Enqueue is a single O(1) insert so webhook handlers can acknowledge fast;
// delivery retries from the sender are absorbed by idempotent workers rather
// than de-duplicated here.
type Queue struct {
	db      *dbpkg.Client
	logg    *logger.Logger
	metrics *metrics.QueueMetrics

	maxAttempts int
	backoffBase time.Duration

	completedMaxAge  time.Duration
	completedMaxKeep int
	failedMaxAge     time.Duration
	failedMaxKeep    int

	now func() time.Time
}

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
)

// New builds a queue.
func New(opts Options) (*Queue, error) {
	if opts.DB == nil {
		return nil, errors.New("db client required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger required")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	return &Queue{
		db:               opts.DB,
		logg:             opts.Logger,
		metrics:          opts.Metrics,
		maxAttempts:      maxAttempts,
		backoffBase:      backoffBase,
		completedMaxAge:  opts.CompletedMaxAge,
		completedMaxKeep: opts.CompletedMaxKeep,
		failedMaxAge:     opts.FailedMaxAge,
		failedMaxKeep:    opts.FailedMaxKeep,
		now:              time.Now,
	}, nil
}

// Enqueue inserts a waiting job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap) (string, error) {
	return q.EnqueueWithPriority(ctx, jobType, topic, payload, jobType.Priority())
}

// EnqueueWithPriority inserts a waiting job with an explicit priority; lower
// runs first.
func (q *Queue) EnqueueWithPriority(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap, priority int) (string, error) {
	if !jobType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid job type %q", jobType))
	}
	now := q.now()
	job := models.QueueJob{
		ID:          fmt.Sprintf("%s:%s:%d", jobType, topic, now.UnixNano()),
		Type:        jobType,
		Topic:       topic,
		Priority:    priority,
		Status:      enums.JobStatusWaiting,
		Payload:     payload,
		MaxAttempts: q.maxAttempts,
		RunAt:       now,
	}
	if err := q.db.DB().WithContext(ctx).Create(&job).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue job")
	}
	return job.ID, nil
}

// ClaimNext atomically claims the highest-priority runnable job for the given
// types, moving it to active. Returns nil when nothing is runnable. Within a
// (type, topic) pair claims follow insertion order.
func (q *Queue) ClaimNext(ctx context.Context, types ...enums.JobType) (*models.QueueJob, error) {
	if len(types) == 0 {
		return nil, errors.New("at least one job type required")
	}

	var claimed *models.QueueJob
	err := q.db.WithTx(ctx, func(tx *gorm.DB) error {
		query := tx.
			Where("type IN ?", types).
			Where("status = ?", enums.JobStatusWaiting).
			Where("run_at <= ?", q.now()).
			Order("priority ASC").
			Order("created_at ASC").
			Limit(1)
		// SKIP LOCKED keeps concurrent workers from claiming the same row;
		// sqlite (tests) runs single-writer and has no equivalent.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var job models.QueueJob
		if err := query.First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		job.Status = enums.JobStatusActive
		job.Attempts++
		if err := tx.Model(&models.QueueJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":   enums.JobStatusActive,
				"attempts": job.Attempts,
			}).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim job")
	}
	return claimed, nil
}

// Complete marks the job done.
func (q *Queue) Complete(ctx context.Context, job *models.QueueJob) error {
	now := q.now()
	err := q.db.DB().WithContext(ctx).
		Model(&models.QueueJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":       enums.JobStatusCompleted,
			"completed_at": now,
			"last_error":   "",
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete job")
	}
	q.metrics.IncCompleted(string(job.Type))
	return nil
}

// Fail records a processing failure. Retryable failures re-queue the job
// with exponential backoff until MaxAttempts retries are spent (1s, 2s, 4s
// at the defaults); everything else is failed permanently.
func (q *Queue) Fail(ctx context.Context, job *models.QueueJob, cause error) error {
	retryable := pkgerrors.IsRetryable(cause)
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	if retryable && job.Attempts <= job.MaxAttempts {
		delay := q.backoffBase << (job.Attempts - 1)
		err := q.db.DB().WithContext(ctx).
			Model(&models.QueueJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":     enums.JobStatusWaiting,
				"run_at":     q.now().Add(delay),
				"last_error": message,
			}).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue job")
		}
		q.metrics.IncRetried(string(job.Type))
		return nil
	}

	err := q.db.DB().WithContext(ctx).
		Model(&models.QueueJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":       enums.JobStatusFailed,
			"completed_at": q.now(),
			"last_error":   message,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail job")
	}
	q.metrics.IncFailed(string(job.Type))
	return nil
}

// Depth returns the waiting job count per type.
func (q *Queue) Depth(ctx context.Context, jobType enums.JobType) (int64, error) {
	var count int64
	err := q.db.DB().WithContext(ctx).
		Model(&models.QueueJob{}).
		Where("type = ? AND status = ?", jobType, enums.JobStatusWaiting).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue depth")
	}
	q.metrics.SetDepth(string(jobType), float64(count))
	return count, nil
}

// Prune applies the retention policy: completed jobs kept 1h/100 items and
// failed jobs 24h/1000 items by default.
func (q *Queue) Prune(ctx context.Context) error {
	if err := q.pruneStatus(ctx, enums.JobStatusCompleted, q.completedMaxAge, q.completedMaxKeep); err != nil {
		return err
	}
	return q.pruneStatus(ctx, enums.JobStatusFailed, q.failedMaxAge, q.failedMaxKeep)
}

func (q *Queue) pruneStatus(ctx context.Context, status enums.JobStatus, maxAge time.Duration, maxKeep int) error {
	conn := q.db.DB().WithContext(ctx)

	if maxAge > 0 {
		cutoff := q.now().Add(-maxAge)
		if err := conn.
			Where("status = ? AND completed_at < ?", status, cutoff).
			Delete(&models.QueueJob{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune jobs by age")
		}
	}

	if maxKeep > 0 {
		var ids []string
		err := conn.
			Model(&models.QueueJob{}).
			Where("status = ?", status).
			Order("completed_at DESC").
			Offset(maxKeep).
			Pluck("id", &ids).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune jobs by count")
		}
		if len(ids) > 0 {
			if err := conn.Where("id IN ?", ids).Delete(&models.QueueJob{}).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune jobs by count")
			}
		}
	}
	return nil
}

// ObserveDuration forwards processing latency to metrics.
func (q *Queue) ObserveDuration(jobType enums.JobType, d time.Duration) {
	q.metrics.ObserveDuration(string(jobType), d)
}

// Logger exposes the queue's logger for worker pools.
func (q *Queue) Logger() *logger.Logger {
	return q.logg
}

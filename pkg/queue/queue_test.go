package queue

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/jerkyranks/jerkyranks-backend/pkg/db"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.QueueJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	q, err := New(Options{
		DB:     dbpkg.NewFromConn(conn),
		Logger: logger.New(logger.Options{ServiceName: "queue-test"}),
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestClaimRespectsPriorityThenFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	// Insert a customers job first, then orders; orders outranks it.
	if _, err := q.Enqueue(ctx, enums.JobTypeCustomers, "customers/update", models.JSONMap{"n": 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := q.Enqueue(ctx, enums.JobTypeOrders, "orders/paid", models.JSONMap{"n": 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := q.Enqueue(ctx, enums.JobTypeOrders, "orders/paid", models.JSONMap{"n": 3}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	types := []enums.JobType{enums.JobTypeOrders, enums.JobTypeProducts, enums.JobTypeCustomers}

	first, err := q.ClaimNext(ctx, types...)
	if err != nil || first == nil {
		t.Fatalf("claim: job=%v err=%v", first, err)
	}
	if first.Type != enums.JobTypeOrders {
		t.Fatalf("expected orders first, got %s", first.Type)
	}

	second, err := q.ClaimNext(ctx, types...)
	if err != nil || second == nil {
		t.Fatalf("claim: job=%v err=%v", second, err)
	}
	if second.Type != enums.JobTypeOrders || second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("expected second orders job in FIFO order, got %s", second.ID)
	}

	third, err := q.ClaimNext(ctx, types...)
	if err != nil || third == nil {
		t.Fatalf("claim: job=%v err=%v", third, err)
	}
	if third.Type != enums.JobTypeCustomers {
		t.Fatalf("expected customers last, got %s", third.Type)
	}

	if job, err := q.ClaimNext(ctx, types...); err != nil || job != nil {
		t.Fatalf("expected empty queue, got job=%v err=%v", job, err)
	}
}

func TestRetryableFailureRequeuesWithBackoff(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	clock := time.Now()
	q.now = func() time.Time { return clock }

	if _, err := q.Enqueue(ctx, enums.JobTypeProducts, "products/update", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Each retryable failure doubles the delay: 1s, 2s, 4s.
	delays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, delay := range delays {
		job, err := q.ClaimNext(ctx, enums.JobTypeProducts)
		if err != nil || job == nil {
			t.Fatalf("claim %d: job=%v err=%v", i+1, job, err)
		}
		if job.Attempts != i+1 {
			t.Fatalf("expected attempt %d, got %d", i+1, job.Attempts)
		}
		failedAt := clock
		if err := q.Fail(ctx, job, pkgerrors.New(pkgerrors.CodeDependency, "db down")); err != nil {
			t.Fatalf("fail: %v", err)
		}

		// Not runnable until this step's backoff elapses.
		clock = failedAt.Add(delay - time.Millisecond)
		if early, err := q.ClaimNext(ctx, enums.JobTypeProducts); err != nil || early != nil {
			t.Fatalf("expected %s backoff to delay claim %d, got job=%v err=%v", delay, i+1, early, err)
		}
		clock = failedAt.Add(delay)
	}

	final, err := q.ClaimNext(ctx, enums.JobTypeProducts)
	if err != nil || final == nil {
		t.Fatalf("expected job after final backoff, got %v err=%v", final, err)
	}
	if final.Attempts != 4 {
		t.Fatalf("expected attempt 4, got %d", final.Attempts)
	}
}

func TestValidationFailureIsPermanent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, enums.JobTypeProducts, "products/update", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.ClaimNext(ctx, enums.JobTypeProducts)
	if err != nil || job == nil {
		t.Fatalf("claim: %v", err)
	}

	if err := q.Fail(ctx, job, pkgerrors.New(pkgerrors.CodeValidation, "malformed payload")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	var stored models.QueueJob
	if err := q.db.DB().Where("id = ?", job.ID).First(&stored).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Status != enums.JobStatusFailed {
		t.Fatalf("expected permanent failure, got %s", stored.Status)
	}
}

func TestRetriesExhaustToPermanentFailure(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, enums.JobTypeOrders, "orders/cancelled", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Three retries follow the first attempt; the fourth failure is final.
	for attempt := 1; attempt <= 4; attempt++ {
		q.now = func() time.Time { return time.Now().Add(time.Duration(attempt) * 10 * time.Second) }
		job, err := q.ClaimNext(ctx, enums.JobTypeOrders)
		if err != nil || job == nil {
			t.Fatalf("claim attempt %d: job=%v err=%v", attempt, job, err)
		}
		if job.Attempts != attempt {
			t.Fatalf("expected attempt %d, got %d", attempt, job.Attempts)
		}
		if err := q.Fail(ctx, job, pkgerrors.New(pkgerrors.CodeDependency, "still down")); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}

	if job, err := q.ClaimNext(ctx, enums.JobTypeOrders); err != nil || job != nil {
		t.Fatalf("expected no further retries, got job=%v err=%v", job, err)
	}

	var stored models.QueueJob
	if err := q.db.DB().Order("created_at DESC").First(&stored).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Status != enums.JobStatusFailed {
		t.Fatalf("expected failed after max attempts, got %s", stored.Status)
	}
}

func TestPruneRetention(t *testing.T) {
	q := newTestQueue(t)
	q.completedMaxAge = time.Hour
	q.completedMaxKeep = 2
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	jobs := []models.QueueJob{
		{ID: "products:a:1", Type: enums.JobTypeProducts, Topic: "a", Status: enums.JobStatusCompleted, CompletedAt: &old, RunAt: old},
		{ID: "products:b:2", Type: enums.JobTypeProducts, Topic: "b", Status: enums.JobStatusCompleted, CompletedAt: &recent, RunAt: recent},
		{ID: "products:c:3", Type: enums.JobTypeProducts, Topic: "c", Status: enums.JobStatusCompleted, CompletedAt: &recent, RunAt: recent},
		{ID: "products:d:4", Type: enums.JobTypeProducts, Topic: "d", Status: enums.JobStatusCompleted, CompletedAt: &recent, RunAt: recent},
	}
	for i := range jobs {
		if err := q.db.DB().Create(&jobs[i]).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	if err := q.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	var count int64
	if err := q.db.DB().Model(&models.QueueJob{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 retained jobs, got %d", count)
	}
}

package webhooks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/internal/orders"
	"github.com/jerkyranks/jerkyranks-backend/internal/products"
	"github.com/jerkyranks/jerkyranks-backend/internal/users"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type enqueuedJob struct {
	jobType  enums.JobType
	topic    string
	payload  models.JSONMap
	priority int
}

type fakeQueue struct {
	jobs []enqueuedJob
	next int
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap) (string, error) {
	return f.EnqueueWithPriority(ctx, jobType, topic, payload, jobType.Priority())
}

func (f *fakeQueue) EnqueueWithPriority(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap, priority int) (string, error) {
	f.jobs = append(f.jobs, enqueuedJob{jobType: jobType, topic: topic, payload: payload, priority: priority})
	f.next++
	return fmt.Sprintf("%s:%s:%d", jobType, topic, f.next), nil
}

type fakeValidator struct {
	userID      uuid.UUID
	code        string
	divergences []achievements.Divergence
}

func (f *fakeValidator) Validate(ctx context.Context, userID uuid.UUID, code string) ([]achievements.Divergence, error) {
	f.userID = userID
	f.code = code
	return f.divergences, nil
}

func newConn(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.ProductMetadata{}, &models.User{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newRegistry(t *testing.T, logg *logger.Logger) *cache.Registry {
	t.Helper()
	caches, err := cache.NewRegistry(config.CacheConfig{}, cache.MemoryFactory(), logg, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return caches
}

func job(jobType enums.JobType, topic string, payload models.JSONMap) *models.QueueJob {
	return &models.QueueJob{
		ID:      fmt.Sprintf("%s:%s:%d", jobType, topic, time.Now().UnixNano()),
		Type:    jobType,
		Topic:   topic,
		Payload: payload,
	}
}

func TestIngestValidatesTopicAgainstType(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	queue := &fakeQueue{}
	ingestor, err := NewIngestor(queue, logg)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	ctx := context.Background()

	if _, err := ingestor.Ingest(ctx, enums.JobTypeProducts, "orders/create", models.JSONMap{"id": "1"}); err == nil {
		t.Fatal("expected mismatched topic to be rejected")
	}
	if _, err := ingestor.Ingest(ctx, enums.JobTypeProducts, "products/update", nil); err == nil {
		t.Fatal("expected empty payload to be rejected")
	}

	jobID, err := ingestor.Ingest(ctx, enums.JobTypeProducts, "products/update", models.JSONMap{"id": "gid://product/1"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if jobID == "" || len(queue.jobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(queue.jobs))
	}
	if queue.jobs[0].priority != enums.JobTypeProducts.Priority() {
		t.Fatalf("expected default priority, got %d", queue.jobs[0].priority)
	}
}

func TestProductLifecycleIsIdempotent(t *testing.T) {
	conn := newConn(t)
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	caches := newRegistry(t, logg)
	handler, err := NewProductsHandler(products.NewRepository(conn), caches, logg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	ctx := context.Background()

	payload := models.JSONMap{
		"id":    "gid://product/1",
		"title": "Peppered Beef Jerky",
		"tags":  []string{"animal:beef", "flavor:peppered"},
	}
	for i := 0; i < 2; i++ {
		if err := handler.Handle(ctx, job(enums.JobTypeProducts, "products/update", payload)); err != nil {
			t.Fatalf("handle update: %v", err)
		}
	}

	var rows []models.ProductMetadata
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one metadata row after replay, got %d", len(rows))
	}
	if rows[0].AnimalType != "beef" || rows[0].FlavorPrimary != "peppered" {
		t.Fatalf("unexpected taxonomy: %+v", rows[0])
	}

	if err := caches.RankingStats.Set(ctx, cache.SingletonKey, map[string]any{"seeded": true}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := handler.Handle(ctx, job(enums.JobTypeProducts, "products/delete", models.JSONMap{"id": "gid://product/1"})); err != nil {
		t.Fatalf("handle delete: %v", err)
	}

	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected metadata removed, got %d rows", len(rows))
	}
	var dest map[string]any
	hit, err := caches.RankingStats.Get(ctx, cache.SingletonKey, &dest)
	if err != nil {
		t.Fatalf("get ranking stats: %v", err)
	}
	if hit {
		t.Fatal("product delete must drop the ranking stats namespace")
	}
}

func TestCustomerReplaysConvergeOnOneUser(t *testing.T) {
	conn := newConn(t)
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	handler, err := NewCustomersHandler(users.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	ctx := context.Background()

	create := models.JSONMap{"id": "cust-1", "email": "gus@example.com", "first_name": "Gus", "last_name": "Herrera"}
	if err := handler.Handle(ctx, job(enums.JobTypeCustomers, "customers/create", create)); err != nil {
		t.Fatalf("handle create: %v", err)
	}
	update := models.JSONMap{"id": "cust-1", "email": "gus@example.com", "first_name": "Gustavo", "last_name": "Herrera"}
	if err := handler.Handle(ctx, job(enums.JobTypeCustomers, "customers/update", update)); err != nil {
		t.Fatalf("handle update: %v", err)
	}

	var rows []models.User
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one user after replay, got %d", len(rows))
	}
	if rows[0].FirstName != "Gustavo" {
		t.Fatalf("expected refreshed profile, got %+v", rows[0])
	}
}

func TestOrderCancellationQueuesRecalculation(t *testing.T) {
	conn := newConn(t)
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	userRepo := users.NewRepository(conn)
	queue := &fakeQueue{}
	handler, err := NewOrdersHandler(orders.NewRepository(conn), userRepo, queue, logg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	ctx := context.Background()

	customerID := "cust-9"
	user, err := userRepo.UpsertByCustomerID(ctx, users.UpsertUserDTO{
		CustomerID: &customerID,
		Email:      "mara@example.com",
		FirstName:  "Mara",
		LastName:   "Voss",
		Role:       enums.RoleUser,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	orderPayload := models.JSONMap{
		"id":          "order-1",
		"customer_id": customerID,
		"line_items": []map[string]any{
			{"product_id": "gid://product/1", "quantity": 2},
			{"product_id": "gid://product/2", "quantity": 1},
		},
	}
	if err := handler.Handle(ctx, job(enums.JobTypeOrders, "orders/create", orderPayload)); err != nil {
		t.Fatalf("handle create: %v", err)
	}

	var items []models.OrderItem
	if err := conn.Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two order items, got %d", len(items))
	}

	cancel := models.JSONMap{"id": "order-1", "customer_id": customerID, "cancelled": true}
	if err := handler.Handle(ctx, job(enums.JobTypeOrders, "orders/cancelled", cancel)); err != nil {
		t.Fatalf("handle cancel: %v", err)
	}

	if err := conn.Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	for _, item := range items {
		if !item.Cancelled {
			t.Fatalf("expected cancelled items, got %+v", item)
		}
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("expected one recalculation job, got %d", len(queue.jobs))
	}
	recalc := queue.jobs[0]
	if recalc.jobType != enums.JobTypeCoinRecalc || recalc.priority != 1 {
		t.Fatalf("unexpected recalculation job: %+v", recalc)
	}
	if recalc.payload["user_id"] != user.ID.String() || recalc.payload["reason"] != "order_cancelled" {
		t.Fatalf("unexpected recalculation payload: %+v", recalc.payload)
	}
}

func TestOrderForUnknownCustomerRetries(t *testing.T) {
	conn := newConn(t)
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	handler, err := NewOrdersHandler(orders.NewRepository(conn), users.NewRepository(conn), &fakeQueue{}, logg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	payload := models.JSONMap{
		"id":          "order-7",
		"customer_id": "cust-missing",
		"line_items":  []map[string]any{{"product_id": "gid://product/1"}},
	}
	err = handler.Handle(context.Background(), job(enums.JobTypeOrders, "orders/create", payload))
	if err == nil {
		t.Fatal("expected unknown customer to fail")
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("unknown customer must stay retryable, got %v", err)
	}
}

func TestCoinRecalcHandlerScopesValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "webhooks-test"})
	validator := &fakeValidator{}
	handler, err := NewCoinRecalcHandler(validator, logg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	ctx := context.Background()

	userID := uuid.New()
	payload := models.JSONMap{"user_id": userID.String(), "coin_type": "flavor_coin", "reason": "order_cancelled"}
	if err := handler.Handle(ctx, job(enums.JobTypeCoinRecalc, "coin_recalc/order_cancelled", payload)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if validator.userID != userID || validator.code != "flavor_coin" {
		t.Fatalf("unexpected validation scope: %s %s", validator.userID, validator.code)
	}

	err = handler.Handle(ctx, job(enums.JobTypeCoinRecalc, "coin_recalc/order_cancelled", models.JSONMap{"user_id": "nope"}))
	if err == nil {
		t.Fatal("expected malformed payload to fail")
	}
	if pkgerrors.IsRetryable(err) {
		t.Fatalf("malformed payload must be permanent, got %v", err)
	}
}

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OrderItem{}))
	return conn
}

func item(userID uuid.UUID, orderID, productID string, day int) models.OrderItem {
	return models.OrderItem{
		ID:        uuid.New(),
		UserID:    userID,
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  1,
		OrderDate: time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsertItemsReplaysConverge(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupOrdersTestDB(t))
	userID := uuid.New()

	first := item(userID, "order-1", "prod-a", 1)
	require.NoError(t, repo.UpsertItems(ctx, []models.OrderItem{first}))

	replay := item(userID, "order-1", "prod-a", 1)
	replay.Quantity = 3
	require.NoError(t, repo.UpsertItems(ctx, []models.OrderItem{replay}))

	var rows []models.OrderItem
	require.NoError(t, repo.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Quantity)
}

func TestCancelOrderReturnsAffectedUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupOrdersTestDB(t))
	buyer := uuid.New()
	other := uuid.New()

	require.NoError(t, repo.UpsertItems(ctx, []models.OrderItem{
		item(buyer, "order-1", "prod-a", 1),
		item(buyer, "order-1", "prod-b", 1),
		item(other, "order-2", "prod-a", 2),
	}))

	userIDs, err := repo.CancelOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, userIDs, 1)
	assert.Equal(t, buyer, userIDs[0])

	purchased, err := repo.PurchasedProductIDs(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, purchased)

	kept, err := repo.PurchasedProductIDs(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-a"}, kept)
}

func TestFirstOrderDateSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupOrdersTestDB(t))
	userID := uuid.New()

	require.NoError(t, repo.UpsertItems(ctx, []models.OrderItem{
		item(userID, "order-1", "prod-a", 1),
		item(userID, "order-2", "prod-b", 5),
	}))

	_, err := repo.CancelOrder(ctx, "order-1")
	require.NoError(t, err)

	got, err := repo.FirstOrderDate(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.Day())

	missing, err := repo.FirstOrderDate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

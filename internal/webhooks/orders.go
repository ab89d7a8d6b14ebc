package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type customerFinder interface {
	FindByCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

type orderStore interface {
	UpsertItems(ctx context.Context, items []models.OrderItem) error
	CancelOrder(ctx context.Context, orderID string) ([]uuid.UUID, error)
}

type priorityEnqueuer interface {
	EnqueueWithPriority(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap, priority int) (string, error)
}

type orderPayload struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	Cancelled         bool      `json:"cancelled"`
	FulfillmentStatus string    `json:"fulfillment_status"`
	CreatedAt         time.Time `json:"created_at"`
	LineItems         []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"line_items"`
}

// OrdersHandler mirrors order line items into the purchase ledger. An order
// that is cancelled, or whose fulfillment walks backwards, marks its items
// cancelled and queues a coin recalculation for every affected user, since
// purchase-gated progress may no longer be supported.
type OrdersHandler struct {
	store orderStore
	users customerFinder
	queue priorityEnqueuer
	logg  *logger.Logger
	now   func() time.Time
}

// NewOrdersHandler constructs the orders webhook worker.
func NewOrdersHandler(store orderStore, users customerFinder, queue priorityEnqueuer, logg *logger.Logger) (*OrdersHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if users == nil {
		return nil, fmt.Errorf("customer finder required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OrdersHandler{store: store, users: users, queue: queue, logg: logg, now: time.Now}, nil
}

// Type reports the job type this handler claims.
func (h *OrdersHandler) Type() enums.JobType { return enums.JobTypeOrders }

// Handle applies one order event.
func (h *OrdersHandler) Handle(ctx context.Context, job *models.QueueJob) error {
	var payload orderPayload
	if err := decodePayload(job.Payload, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order payload missing id")
	}

	if h.isDowngrade(topicAction(job.Topic), payload) {
		return h.cancel(ctx, payload)
	}
	return h.upsert(ctx, payload)
}

// isDowngrade reports whether the event removes purchases from play.
func (h *OrdersHandler) isDowngrade(action string, payload orderPayload) bool {
	if action == "cancelled" || payload.Cancelled {
		return true
	}
	switch payload.FulfillmentStatus {
	case "restocked", "returned":
		return true
	}
	return false
}

func (h *OrdersHandler) upsert(ctx context.Context, payload orderPayload) error {
	if payload.CustomerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order payload missing customer id")
	}
	user, err := h.users.FindByCustomerID(ctx, payload.CustomerID)
	if err != nil {
		// The customers webhook for a first-time buyer may still be in
		// flight; retrying lets it win the race.
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("unknown customer %s", payload.CustomerID))
	}

	orderDate := payload.CreatedAt
	if orderDate.IsZero() {
		orderDate = h.now()
	}
	items := make([]models.OrderItem, 0, len(payload.LineItems))
	for _, line := range payload.LineItems {
		if line.ProductID == "" {
			continue
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, models.OrderItem{
			ID:                uuid.New(),
			UserID:            user.ID,
			OrderID:           payload.ID,
			ProductID:         line.ProductID,
			Quantity:          quantity,
			FulfillmentStatus: payload.FulfillmentStatus,
			OrderDate:         orderDate,
		})
	}
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order payload has no line items")
	}

	if err := h.store.UpsertItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert order items")
	}
	octx := h.logg.WithFields(ctx, map[string]any{"order_id": payload.ID, "items": len(items)})
	h.logg.Info(octx, "order items synced")
	return nil
}

func (h *OrdersHandler) cancel(ctx context.Context, payload orderPayload) error {
	userIDs, err := h.store.CancelOrder(ctx, payload.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
	}

	for _, userID := range userIDs {
		_, err := h.queue.EnqueueWithPriority(ctx, enums.JobTypeCoinRecalc, "coin_recalc/order_cancelled", models.JSONMap{
			"user_id":   userID.String(),
			"coin_type": "",
			"reason":    "order_cancelled",
			"context":   map[string]any{"order_id": payload.ID},
		}, 1)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue coin recalculation")
		}
	}
	octx := h.logg.WithFields(ctx, map[string]any{"order_id": payload.ID, "users": len(userIDs)})
	h.logg.Info(octx, "order cancelled, recalculations queued")
	return nil
}

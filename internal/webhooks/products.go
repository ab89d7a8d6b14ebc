package webhooks

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/jerkyranks/jerkyranks-backend/internal/products"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/catalog"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type productStore interface {
	UpsertMetadata(ctx context.Context, meta *models.ProductMetadata) error
	DeleteMetadata(ctx context.Context, productID string) error
}

// ProductsHandler applies catalog webhooks: create and update upsert the
// taxonomy snapshot, delete removes it. Replays land on the same primary
// key, so repeated delivery converges on the same row.
type ProductsHandler struct {
	store  productStore
	caches *cache.Registry
	logg   *logger.Logger
}

// NewProductsHandler constructs the products webhook worker.
func NewProductsHandler(store productStore, caches *cache.Registry, logg *logger.Logger) (*ProductsHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("product store required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ProductsHandler{store: store, caches: caches, logg: logg}, nil
}

// Type reports the job type this handler claims.
func (h *ProductsHandler) Type() enums.JobType { return enums.JobTypeProducts }

// Handle applies one catalog event.
func (h *ProductsHandler) Handle(ctx context.Context, job *models.QueueJob) error {
	switch action := topicAction(job.Topic); action {
	case "create", "update":
		return h.upsert(ctx, job)
	case "delete":
		return h.delete(ctx, job)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown products action %q", action))
	}
}

func (h *ProductsHandler) upsert(ctx context.Context, job *models.QueueJob) error {
	var product catalog.Product
	if err := decodePayload(job.Payload, &product); err != nil {
		return err
	}
	if product.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product payload missing id")
	}

	if err := h.store.UpsertMetadata(ctx, products.MetadataFromProduct(product)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert product metadata")
	}
	if err := h.invalidate(ctx, false); err != nil {
		h.logg.Error(ctx, "cache invalidation failed after product sync", err)
	}
	h.logg.Info(h.logg.WithField(ctx, "product_id", product.ID), "product metadata synced")
	return nil
}

func (h *ProductsHandler) delete(ctx context.Context, job *models.QueueJob) error {
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodePayload(job.Payload, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product payload missing id")
	}

	if err := h.store.DeleteMetadata(ctx, payload.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product metadata")
	}
	// A removed product changes every product list, so the ranking stats
	// namespace goes too.
	if err := h.invalidate(ctx, true); err != nil {
		h.logg.Error(ctx, "cache invalidation failed after product delete", err)
	}
	h.logg.Info(h.logg.WithField(ctx, "product_id", payload.ID), "product metadata removed")
	return nil
}

func (h *ProductsHandler) invalidate(ctx context.Context, deleted bool) error {
	errs := []error{
		h.caches.ProductMetadata.Invalidate(ctx, "*"),
		h.caches.Catalog.Invalidate(ctx, "*"),
	}
	if deleted {
		errs = append(errs, h.caches.RankingStats.Invalidate(ctx, "*"))
	}
	return multierr.Combine(errs...)
}

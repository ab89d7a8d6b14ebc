package products

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository persists the per-product taxonomy snapshot.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a products repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// UpsertMetadata writes or refreshes one product's taxonomy row.
func (r *Repository) UpsertMetadata(ctx context.Context, meta *models.ProductMetadata) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "animal_type", "animal_display", "animal_icon",
				"flavor_primary", "flavor_secondary", "flavor_display", "flavor_icon",
				"protein_category", "updated_at",
			}),
		}).
		Create(meta).Error
}

// DeleteMetadata removes the row for a product the storefront deleted.
func (r *Repository) DeleteMetadata(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.ProductMetadata{}).Error
}

// MetadataByIDs loads taxonomy rows for the given products.
func (r *Repository) MetadataByIDs(ctx context.Context, productIDs []string) (map[string]models.ProductMetadata, error) {
	if len(productIDs) == 0 {
		return map[string]models.ProductMetadata{}, nil
	}
	var rows []models.ProductMetadata
	err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.ProductMetadata, len(rows))
	for _, row := range rows {
		byID[row.ProductID] = row
	}
	return byID, nil
}

// AllProductIDs returns every product id in the taxonomy snapshot, the
// resolved set for all-rankable collections.
func (r *Repository) AllProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.ProductMetadata{}).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ForceRankableIDs returns products the operator opened for ranking without
// a purchase.
func (r *Repository) ForceRankableIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.ProductMetadata{}).
		Where("force_rankable = ?", true).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ProductIDsBySelectors resolves dynamic collection selectors against the
// taxonomy: a selector matches animal_type, flavor_primary, or
// protein_category.
func (r *Repository) ProductIDsBySelectors(ctx context.Context, selectors, proteinFilters []string) ([]string, error) {
	if len(selectors) == 0 && len(proteinFilters) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Model(&models.ProductMetadata{})
	if len(selectors) > 0 {
		q = q.Where(
			"animal_type IN ? OR flavor_primary IN ? OR protein_category IN ?",
			selectors, selectors, selectors,
		)
	}
	if len(proteinFilters) > 0 {
		q = q.Where("protein_category IN ?", proteinFilters)
	}

	var ids []string
	if err := q.Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

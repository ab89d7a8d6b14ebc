package achievements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository persists coin definitions and per-user coin state.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an achievements repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListActiveDefinitions returns every active definition, stable by code.
func (r *Repository) ListActiveDefinitions(ctx context.Context) ([]models.CoinDefinition, error) {
	var defs []models.CoinDefinition
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// FindDefinitionByCode loads one definition, active or not.
func (r *Repository) FindDefinitionByCode(ctx context.Context, code string) (*models.CoinDefinition, error) {
	var def models.CoinDefinition
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindDefinitionByID loads one definition by primary key.
func (r *Repository) FindDefinitionByID(ctx context.Context, id uuid.UUID) (*models.CoinDefinition, error) {
	var def models.CoinDefinition
	err := r.db.WithContext(ctx).First(&def, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// UpsertDefinition creates or updates a definition row keyed by code.
func (r *Repository) UpsertDefinition(ctx context.Context, def *models.CoinDefinition) error {
	var existing models.CoinDefinition
	err := r.db.WithContext(ctx).Where("code = ?", def.Code).First(&existing).Error
	switch err {
	case nil:
		def.ID = existing.ID
		def.Version = existing.Version + 1
		return r.db.WithContext(ctx).Save(def).Error
	case gorm.ErrRecordNotFound:
		return r.db.WithContext(ctx).Create(def).Error
	default:
		return err
	}
}

// ListUserCoins returns every coin row the user holds.
func (r *Repository) ListUserCoins(ctx context.Context, userID uuid.UUID) ([]models.UserCoin, error) {
	var rows []models.UserCoin
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindUserCoin returns the user's row for one definition, nil when absent.
func (r *Repository) FindUserCoin(ctx context.Context, userID, coinID uuid.UUID) (*models.UserCoin, error) {
	var row models.UserCoin
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND coin_id = ?", userID, coinID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SaveUserCoin inserts or updates the user's coin row. New rows get their id
// assigned here so Save can tell inserts from updates.
func (r *Repository) SaveUserCoin(ctx context.Context, row *models.UserCoin) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(row).Error
}

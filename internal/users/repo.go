package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// Repository exposes user and magic-link persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repo bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// UpsertByCustomerID creates or refreshes the user row keyed by the commerce
// customer id. Identity fields follow the upstream record; role is never
// downgraded by a webhook.
func (r *Repository) UpsertByCustomerID(ctx context.Context, dto UpsertUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if user.CustomerID == nil || strings.TrimSpace(*user.CustomerID) == "" {
		return nil, gorm.ErrMissingWhereClause
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "first_name", "last_name", "updated_at",
			}),
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.FindByCustomerID(ctx, *user.CustomerID)
}

// EnsureByEmail returns the user with the given email, creating one on first
// contact.
func (r *Repository) EnsureByEmail(ctx context.Context, dto UpsertUserDTO) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	existing, err := r.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByCustomerID retrieves the user matching the commerce customer id.
func (r *Repository) FindByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListIDs returns every user id, used by admin recalculation sweeps.
func (r *Repository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateMagicLink stores a one-shot login token.
func (r *Repository) CreateMagicLink(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*models.MagicLink, error) {
	link := &models.MagicLink{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

// FindActiveMagicLink returns the link for token when it is unused and not
// expired.
func (r *Repository) FindActiveMagicLink(ctx context.Context, token string, now time.Time) (*models.MagicLink, error) {
	var link models.MagicLink
	err := r.db.WithContext(ctx).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MarkMagicLinkUsed burns the token. The guarded update makes redemption
// single-shot even under concurrent requests.
func (r *Repository) MarkMagicLinkUsed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MagicLink{}).
		Where("id = ? AND used_at IS NULL", id).
		UpdateColumn("used_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package webhooks

import (
	"context"
	"fmt"

	"github.com/jerkyranks/jerkyranks-backend/internal/users"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type userUpserter interface {
	UpsertByCustomerID(ctx context.Context, dto users.UpsertUserDTO) (*models.User, error)
}

// CustomersHandler mirrors customer records into the user table. The
// customer id is the natural key, so create and update collapse into one
// upsert and redelivery is harmless.
type CustomersHandler struct {
	users userUpserter
	logg  *logger.Logger
}

// NewCustomersHandler constructs the customers webhook worker.
func NewCustomersHandler(upserter userUpserter, logg *logger.Logger) (*CustomersHandler, error) {
	if upserter == nil {
		return nil, fmt.Errorf("user upserter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CustomersHandler{users: upserter, logg: logg}, nil
}

// Type reports the job type this handler claims.
func (h *CustomersHandler) Type() enums.JobType { return enums.JobTypeCustomers }

// Handle upserts one customer profile.
func (h *CustomersHandler) Handle(ctx context.Context, job *models.QueueJob) error {
	var payload struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodePayload(job.Payload, &payload); err != nil {
		return err
	}
	if payload.ID == "" || payload.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer payload missing id or email")
	}

	customerID := payload.ID
	user, err := h.users.UpsertByCustomerID(ctx, users.UpsertUserDTO{
		CustomerID: &customerID,
		Email:      payload.Email,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Role:       enums.RoleUser,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert customer")
	}
	h.logg.Info(h.logg.WithUserID(ctx, user.ID.String()), "customer profile synced")
	return nil
}

package webhooks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/internal/achievements"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type coinValidator interface {
	Validate(ctx context.Context, userID uuid.UUID, code string) ([]achievements.Divergence, error)
}

// CoinRecalcHandler re-validates a user's coins after a purchase has been
// taken back. Validation never lowers stored state; shortfalls are recorded
// as divergences for audit.
type CoinRecalcHandler struct {
	engine coinValidator
	logg   *logger.Logger
}

// NewCoinRecalcHandler constructs the coin recalculation worker.
func NewCoinRecalcHandler(engine coinValidator, logg *logger.Logger) (*CoinRecalcHandler, error) {
	if engine == nil {
		return nil, fmt.Errorf("coin validator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CoinRecalcHandler{engine: engine, logg: logg}, nil
}

// Type reports the job type this handler claims.
func (h *CoinRecalcHandler) Type() enums.JobType { return enums.JobTypeCoinRecalc }

// Handle validates one user's coins, optionally scoped to a single code.
func (h *CoinRecalcHandler) Handle(ctx context.Context, job *models.QueueJob) error {
	var payload struct {
		UserID   string `json:"user_id"`
		CoinType string `json:"coin_type"`
		Reason   string `json:"reason"`
	}
	if err := decodePayload(job.Payload, &payload); err != nil {
		return err
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "recalculation payload missing user id")
	}

	divergences, err := h.engine.Validate(ctx, userID, payload.CoinType)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validate coins")
	}

	rctx := h.logg.WithFields(ctx, map[string]any{
		"user_id":     userID.String(),
		"reason":      payload.Reason,
		"divergences": len(divergences),
	})
	h.logg.Info(rctx, "coin validation finished")
	return nil
}

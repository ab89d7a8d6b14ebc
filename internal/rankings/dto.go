package rankings

import (
	"time"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
)

// RankingInput is one entry of a bulk save. Rank zero means "use the payload
// order".
type RankingInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Rank      int    `json:"rank" validate:"gte=0"`
}

// RankingDTO is one ranked product on a list.
type RankingDTO struct {
	ProductID string    `json:"product_id"`
	Position  int       `json:"position"`
	RankedAt  time.Time `json:"ranked_at"`
}

// FromModel converts a persisted ranking row.
func FromModel(row models.Ranking) RankingDTO {
	return RankingDTO{
		ProductID: row.ProductID,
		Position:  row.Position,
		RankedAt:  row.UpdatedAt,
	}
}

// SaveResult reports a bulk save outcome.
type SaveResult struct {
	Saved            int  `json:"saved"`
	AlreadyProcessed bool `json:"already_processed"`
}

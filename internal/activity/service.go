package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/pagination"
)

// Service records trackable user actions and serves the activity feed.
type Service interface {
	Track(ctx context.Context, userID uuid.UUID, input TrackInput) error
	Feed(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[ActivityDTO], error)
}

// TrackInput is one tracked action from the storefront.
type TrackInput struct {
	Type          enums.ActivityType `json:"type" validate:"required"`
	ProductID     string             `json:"product_id,omitempty"`
	Path          string             `json:"path,omitempty"`
	ProfileUserID *uuid.UUID         `json:"profile_user_id,omitempty"`
	Query         string             `json:"query,omitempty"`
}

// ActivityDTO is one feed entry.
type ActivityDTO struct {
	ID        uuid.UUID          `json:"id"`
	Type      enums.ActivityType `json:"type"`
	Payload   models.JSONMap     `json:"payload,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService constructs the activity service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Track(ctx context.Context, userID uuid.UUID, input TrackInput) error {
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown activity type %q", input.Type))
	}

	payload := models.JSONMap{}
	switch input.Type {
	case enums.ActivityProductView:
		if strings.TrimSpace(input.ProductID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required for product views")
		}
		if err := s.repo.RecordProductView(ctx, userID, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record product view")
		}
		payload["product_id"] = input.ProductID

	case enums.ActivityPageView:
		if strings.TrimSpace(input.Path) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "path is required for page views")
		}
		if err := s.repo.RecordPageView(ctx, userID, input.Path); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record page view")
		}
		payload["path"] = input.Path

	case enums.ActivityProfileView:
		if input.ProfileUserID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "profile_user_id is required for profile views")
		}
		if *input.ProfileUserID == userID {
			return pkgerrors.New(pkgerrors.CodeValidation, "viewing your own profile does not count")
		}
		if err := s.repo.RecordProfileView(ctx, userID, *input.ProfileUserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record profile view")
		}
		payload["profile_user_id"] = input.ProfileUserID.String()

	case enums.ActivitySearch:
		if strings.TrimSpace(input.Query) != "" {
			payload["query"] = input.Query
		}
	}

	if err := s.repo.Log(ctx, userID, input.Type, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append activity log")
	}
	return nil
}

func (s *service) Feed(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[ActivityDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[ActivityDTO]{}, err
	}

	rows, err := s.repo.Feed(ctx, userID, params.Limit, cursor)
	if err != nil {
		return pagination.Page[ActivityDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activity feed")
	}

	dtos := make([]ActivityDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, ActivityDTO{
			ID:        row.ID,
			Type:      row.ActivityType,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return pagination.NewPage(dtos, params.Limit, func(d ActivityDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	}), nil
}

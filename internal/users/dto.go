package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// UserDTO is the transport shape for a user profile.
type UserDTO struct {
	ID         uuid.UUID      `json:"id"`
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Role       enums.UserRole `json:"role"`
	CustomerID *string        `json:"customer_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// UpsertUserDTO holds the identity fields arriving from a customer webhook
// or a first login.
type UpsertUserDTO struct {
	CustomerID *string
	Email      string
	FirstName  string
	LastName   string
	Role       enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		CustomerID: u.CustomerID,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (d UpsertUserDTO) ToModel() *models.User {
	role := d.Role
	if !role.IsValid() {
		role = enums.RoleUser
	}
	return &models.User{
		ID:         uuid.New(),
		CustomerID: d.CustomerID,
		Email:      strings.ToLower(strings.TrimSpace(d.Email)),
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Role:       role,
	}
}

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

// SessionPayload captures the data available when minting a session JWT.
type SessionPayload struct {
	UserID     uuid.UUID
	Email      string
	FirstName  string
	LastName   string
	Role       enums.UserRole
	CustomerID *string
	JTI        string
}

// SessionClaims represents the typed JWT issued to clients after a magic
// link is redeemed.
type SessionClaims struct {
	UserID     uuid.UUID      `json:"user_id"`
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name,omitempty"`
	LastName   string         `json:"last_name,omitempty"`
	Role       enums.UserRole `json:"role"`
	CustomerID *string        `json:"customer_id,omitempty"`
	jwt.RegisteredClaims
}

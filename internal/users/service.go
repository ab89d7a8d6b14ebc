package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/pkg/auth"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

const (
	magicLinkTTL   = 15 * time.Minute
	magicLinkBytes = 32
)

// Service exposes identity operations: magic-link login and profile reads.
type Service interface {
	RequestMagicLink(ctx context.Context, email string) (*MagicLinkDTO, error)
	RedeemMagicLink(ctx context.Context, token string) (*SessionDTO, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
}

// MagicLinkDTO is returned to the delivery channel, never to the requester.
type MagicLinkDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionDTO carries the minted session after a successful redemption.
type SessionDTO struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}

type sessionRegistrar interface {
	Register(ctx context.Context, jti string, userID string) error
}

type service struct {
	repo     *Repository
	sessions sessionRegistrar
	jwtCfg   config.JWTConfig
	operator config.OperatorConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the users service.
func NewService(repo *Repository, sessions sessionRegistrar, jwtCfg config.JWTConfig, operator config.OperatorConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registrar required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		sessions: sessions,
		jwtCfg:   jwtCfg,
		operator: operator,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) RequestMagicLink(ctx context.Context, email string) (*MagicLinkDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	user, err := s.repo.EnsureByEmail(ctx, UpsertUserDTO{
		Email: email,
		Role:  s.roleForEmail(email),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure user")
	}

	token, err := generateToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate login token")
	}

	expiresAt := s.now().Add(magicLinkTTL)
	if _, err := s.repo.CreateMagicLink(ctx, user.ID, token, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store login token")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "magic link issued")
	return &MagicLinkDTO{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *service) RedeemMagicLink(ctx context.Context, token string) (*SessionDTO, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	now := s.now()
	link, err := s.repo.FindActiveMagicLink(ctx, token, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired login token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up login token")
	}

	burned, err := s.repo.MarkMagicLinkUsed(ctx, link.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "burn login token")
	}
	if !burned {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "login token already used")
	}

	user, err := s.repo.FindByID(ctx, link.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	jti := uuid.NewString()
	jwt, err := auth.MintSessionToken(s.jwtCfg, now, auth.SessionPayload{
		UserID:     user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       user.Role,
		CustomerID: user.CustomerID,
		JTI:        jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}
	if err := s.sessions.Register(ctx, jti, user.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register session")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "magic link redeemed")
	return &SessionDTO{Token: jwt, User: FromModel(user)}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

// roleForEmail grants the elevated role to addresses on the operator domain.
func (s *service) roleForEmail(email string) enums.UserRole {
	domain := s.operator.EmailDomain
	if domain != "" && strings.HasSuffix(email, "@"+strings.ToLower(domain)) {
		return enums.RoleEmployeeAdmin
	}
	return enums.RoleUser
}

func generateToken() (string, error) {
	buf := make([]byte, magicLinkBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

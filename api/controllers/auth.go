package controllers

import (
	"context"
	"net/http"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	"github.com/jerkyranks/jerkyranks-backend/api/validators"
	userssvc "github.com/jerkyranks/jerkyranks-backend/internal/users"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, jti string) error
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthRequestMagicLink issues a login token for the email. The token goes to
// the delivery channel, never into this response, so the endpoint does not
// leak which emails hold accounts.
func AuthRequestMagicLink(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload magicLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.RequestMagicLink(r.Context(), payload.Email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAccepted(w, map[string]string{"status": "sent"})
	}
}

type redeemRequest struct {
	Token string `json:"token" validate:"required"`
}

// AuthRedeemMagicLink exchanges a one-time token for a session JWT.
func AuthRedeemMagicLink(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload redeemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.RedeemMagicLink(r.Context(), payload.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// AuthLogout revokes the current session.
func AuthLogout(sessions sessionRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := middleware.SessionIDFromContext(r.Context())
		if jti == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session context missing"))
			return
		}
		if err := sessions.Revoke(r.Context(), jti); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// Me returns the authenticated user's profile.
func Me(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		profile, err := svc.GetProfile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

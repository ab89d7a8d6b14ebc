package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/jerkyranks/jerkyranks-backend/pkg/auth"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

type stubChecker struct {
	sessions map[string]bool
}

func (s *stubChecker) HasSession(ctx context.Context, jti string) (bool, error) {
	return s.sessions[jti], nil
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "jerkyranks", ExpirationMinutes: 60}
	userID := uuid.New()
	jti := uuid.NewString()

	token, err := pkgauth.MintSessionToken(cfg, time.Now(), pkgauth.SessionPayload{
		UserID: userID,
		Email:  "gus@example.com",
		Role:   enums.RoleUser,
		JTI:    jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	checker := &stubChecker{sessions: map[string]bool{jti: true}}

	var seenUser string
	var seenSession string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		seenSession = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Auth(cfg, checker, nil)(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seenUser != userID.String() || seenSession != jti {
			t.Fatalf("context not seeded: user=%q session=%q", seenUser, seenSession)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		checker.sessions[jti] = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 after revocation, got %d", rec.Code)
		}
	})
}

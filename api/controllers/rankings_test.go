package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/api/middleware"
	rankingsvc "github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type stubRankingsService struct {
	saveErr  error
	result   *rankingsvc.SaveResult
	lastOpID string
}

func (s *stubRankingsService) SaveList(ctx context.Context, userID uuid.UUID, listID, opID string, items []rankingsvc.RankingInput) (*rankingsvc.SaveResult, error) {
	s.lastOpID = opID
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &rankingsvc.SaveResult{Saved: len(items)}, nil
}

func (s *stubRankingsService) GetList(ctx context.Context, userID uuid.UUID, listID string) ([]rankingsvc.RankingDTO, error) {
	return nil, nil
}

func (s *stubRankingsService) ClearList(ctx context.Context, userID uuid.UUID, listID string) error {
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithIdentity(context.Background(), uuid.New(), enums.RoleUser, "jti-1")
	return req.WithContext(ctx)
}

func TestSaveRankingsPassesOperationID(t *testing.T) {
	stub := &stubRankingsService{}
	req := authedRequest(http.MethodPut, "/api/v1/rankings", `{"rankings":[{"product_id":"gid://product/1","rank":1}]}`)
	req.Header.Set(operationIDHeader, "op-42")
	rec := httptest.NewRecorder()

	SaveRankings(stub, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastOpID != "op-42" {
		t.Fatalf("expected operation id forwarded, got %q", stub.lastOpID)
	}
}

func TestSaveRankingsSurfacesDuplicateDetails(t *testing.T) {
	stub := &stubRankingsService{
		saveErr: pkgerrors.New(pkgerrors.CodeValidation, "duplicate product ids in payload").
			WithDetails(map[string]any{"duplicates": []string{"gid://product/1"}}),
	}
	req := authedRequest(http.MethodPut, "/api/v1/rankings", `{"rankings":[{"product_id":"gid://product/1","rank":1},{"product_id":"gid://product/1","rank":2}]}`)
	rec := httptest.NewRecorder()

	SaveRankings(stub, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Duplicates []string `json:"duplicates"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code, got %q", body.Error.Code)
	}
	if len(body.Error.Details.Duplicates) != 1 || body.Error.Details.Duplicates[0] != "gid://product/1" {
		t.Fatalf("expected duplicates detail, got %+v", body.Error.Details)
	}
}

func TestSaveRankingsRejectsEmptyPayload(t *testing.T) {
	req := authedRequest(http.MethodPut, "/api/v1/rankings", `{"rankings":[]}`)
	rec := httptest.NewRecorder()

	SaveRankings(&stubRankingsService{}, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty list, got %d", rec.Code)
	}
}

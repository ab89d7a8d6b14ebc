package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
)

func TestValidateTierThresholds(t *testing.T) {
	cases := []struct {
		name       string
		thresholds map[string]int
		wantErr    bool
	}{
		{name: "empty map is fine", thresholds: nil},
		{name: "strictly increasing", thresholds: map[string]int{"bronze": 40, "silver": 60, "gold": 75, "platinum": 90, "diamond": 100}},
		{name: "partial ladder", thresholds: map[string]int{"bronze": 25, "diamond": 100}},
		{name: "equal neighbours rejected", thresholds: map[string]int{"bronze": 50, "silver": 50}, wantErr: true},
		{name: "out of order rejected", thresholds: map[string]int{"silver": 60, "gold": 40}, wantErr: true},
		{name: "unknown tier rejected", thresholds: map[string]int{"mythril": 10}, wantErr: true},
		{name: "complete is not earnable", thresholds: map[string]int{"complete": 100}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateTierThresholds(tc.thresholds)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpsertCoinDefinitionRejectsBadTierThresholds(t *testing.T) {
	body := `{
		"code": "variety-hunter",
		"name": "Variety Hunter",
		"collection_type": "engagement",
		"requirement_type": "rank_count",
		"requirement_value": 10,
		"has_tiers": true,
		"tier_thresholds": {"bronze": 60, "silver": 40}
	}`
	req := authedRequest(http.MethodPut, "/api/v1/admin/coins", body)
	rec := httptest.NewRecorder()

	AdminUpsertCoinDefinition(nil, nil, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	webhooksvc "github.com/jerkyranks/jerkyranks-backend/internal/webhooks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
)

type captureQueue struct {
	jobType enums.JobType
	topic   string
	payload models.JSONMap
}

func (c *captureQueue) Enqueue(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap) (string, error) {
	c.jobType = jobType
	c.topic = topic
	c.payload = payload
	return "products:products/update:1", nil
}

func webhookRequest(t *testing.T, source, topic, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+source, strings.NewReader(body))
	if topic != "" {
		req.Header.Set(webhookTopicHeader, topic)
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("source", source)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestReceiveWebhookAcknowledgesWithJobID(t *testing.T) {
	queue := &captureQueue{}
	ingestor, err := webhooksvc.NewIngestor(queue, testLogger())
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	rec := httptest.NewRecorder()
	ReceiveWebhook(ingestor, testLogger()).ServeHTTP(rec, webhookRequest(t, "products", "products/create", `{"id":"gid://product/1","title":"Sweet Heat"}`))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.JobID == "" {
		t.Fatal("expected a job id in the acknowledgement")
	}
	if queue.jobType != enums.JobTypeProducts || queue.topic != "products/create" {
		t.Fatalf("unexpected enqueue: %s %s", queue.jobType, queue.topic)
	}
}

func TestReceiveWebhookDefaultsTopic(t *testing.T) {
	queue := &captureQueue{}
	ingestor, err := webhooksvc.NewIngestor(queue, testLogger())
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	rec := httptest.NewRecorder()
	ReceiveWebhook(ingestor, testLogger()).ServeHTTP(rec, webhookRequest(t, "customers", "", `{"id":"cust-1","email":"a@b.co"}`))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if queue.topic != "customers/update" {
		t.Fatalf("expected defaulted topic, got %q", queue.topic)
	}
}

func TestReceiveWebhookRejectsUnknownSource(t *testing.T) {
	ingestor, err := webhooksvc.NewIngestor(&captureQueue{}, testLogger())
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	rec := httptest.NewRecorder()
	ReceiveWebhook(ingestor, testLogger()).ServeHTTP(rec, webhookRequest(t, "payments", "", `{"id":"x"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown source, got %d", rec.Code)
	}
}

// Package webhooks accepts deliveries from the commerce and customer
// systems and turns them into queued jobs. Ingestion does no domain work so
// the sender gets its acknowledgement fast; the handlers in this package run
// later on the worker pool and are idempotent under redelivery.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type enqueuer interface {
	Enqueue(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap) (string, error)
}

// Ingestor validates a delivery and enqueues it. The handler registered for
// the job type does the actual write later.
type Ingestor struct {
	queue enqueuer
	logg  *logger.Logger
}

// NewIngestor constructs the webhook ingestion service.
func NewIngestor(queue enqueuer, logg *logger.Logger) (*Ingestor, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Ingestor{queue: queue, logg: logg}, nil
}

// Ingest enqueues one delivery and returns the job id. Topics carry the
// source prefix, e.g. "products/update"; a topic that does not match the
// job type is rejected before it can reach the wrong handler.
func (i *Ingestor) Ingest(ctx context.Context, jobType enums.JobType, topic string, payload models.JSONMap) (string, error) {
	if !jobType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown webhook type %q", jobType))
	}
	if topic == "" || !strings.HasPrefix(topic, string(jobType)+"/") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("topic %q does not belong to type %q", topic, jobType))
	}
	if len(payload) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "empty webhook payload")
	}

	jobID, err := i.queue.Enqueue(ctx, jobType, topic, payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue webhook")
	}
	i.logg.Info(i.logg.WithFields(ctx, map[string]any{"topic": topic, "job_id": jobID}), "webhook accepted")
	return jobID, nil
}

// topicAction strips the source prefix: "products/update" yields "update".
func topicAction(topic string) string {
	if idx := strings.LastIndex(topic, "/"); idx >= 0 {
		return topic[idx+1:]
	}
	return topic
}

// decodePayload maps the stored job payload onto a typed struct. Payloads
// that cannot decode are permanent failures, not retry candidates.
func decodePayload(payload models.JSONMap, dest any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode payload")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	return nil
}

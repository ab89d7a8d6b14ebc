package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jerkyranks/jerkyranks-backend/api/responses"
	webhooksvc "github.com/jerkyranks/jerkyranks-backend/internal/webhooks"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

const webhookTopicHeader = "X-Webhook-Topic"

// ReceiveWebhook accepts one delivery from the commerce or customer system
// and acknowledges as soon as the job is durable. All domain work happens on
// the worker pool.
func ReceiveWebhook(ingestor *webhooksvc.Ingestor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobType, err := enums.ParseJobType(chi.URLParam(r, "source"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown webhook source"))
			return
		}

		var payload models.JSONMap
		decoder := json.NewDecoder(r.Body)
		if err := decoder.Decode(&payload); err != nil {
			io.Copy(io.Discard, r.Body)
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body"))
			return
		}

		topic := strings.TrimSpace(r.Header.Get(webhookTopicHeader))
		if topic == "" {
			topic = string(jobType) + "/update"
		}

		jobID, err := ingestor.Ingest(r.Context(), jobType, topic, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAccepted(w, map[string]string{"job_id": jobID})
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/401-Nick/lra-alerts/internal/arcgis"
	apierrors "github.com/401-Nick/lra-alerts/internal/errors"
	"github.com/401-Nick/lra-alerts/internal/ingest"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// IngestRunner runs one ingest run. Satisfied by ingest.Service.
type IngestRunner interface {
	Run(ctx context.Context) (models.RunSummary, error)
}

// IngestHandler exposes the ingest trigger endpoint. Runs are serialized
// by the service itself; triggering during a run answers 409.
type IngestHandler struct {
	runner IngestRunner
}

// NewIngestHandler creates a new IngestHandler instance.
func NewIngestHandler(runner IngestRunner) *IngestHandler {
	return &IngestHandler{runner: runner}
}

// Trigger handles POST /api/v1/ingest.
// It runs the full pipeline synchronously and returns the run summary, or
// a failure status the caller is expected to retry later.
func (h *IngestHandler) Trigger(c *gin.Context) {
	summary, err := h.runner.Run(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrRunInProgress):
			apierrors.Conflict(c, "An ingest run is already in progress")
		case errors.Is(err, arcgis.ErrAuthFailed):
			apierrors.SourceAuthFailure(c, err)
		case errors.Is(err, arcgis.ErrSourceUnavailable):
			apierrors.SourceUnavailable(c, err)
		default:
			apierrors.InternalServerError(c, "Ingest run failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

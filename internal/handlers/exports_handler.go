package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	apierrors "github.com/401-Nick/lra-alerts/internal/errors"
	"github.com/401-Nick/lra-alerts/internal/repository"
)

// ExportsHandler serves the latest exports snapshot: the selections for
// filter menus plus the last run summary and CSV location.
type ExportsHandler struct {
	repo repository.SnapshotRepository
}

// NewExportsHandler creates a new ExportsHandler instance.
func NewExportsHandler(repo repository.SnapshotRepository) *ExportsHandler {
	return &ExportsHandler{repo: repo}
}

// Current handles GET /api/v1/exports.
func (h *ExportsHandler) Current(c *gin.Context) {
	snap, err := h.repo.LoadSnapshot(c.Request.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apierrors.NotFound(c, "No ingest has completed yet")
			return
		}
		apierrors.InternalServerError(c, "Failed to load exports snapshot", err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

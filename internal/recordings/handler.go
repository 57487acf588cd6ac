package recordings

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/pkg/response"
)

// ProcessRequest is the body for POST /zoom/process-recording.
type ProcessRequest struct {
	Payload       *RecordingPayload `json:"payload" binding:"required"`
	DownloadToken string            `json:"download_token"`
}

// Lister lists archived recordings of a meeting.
type Lister interface {
	ListByMeeting(ctx context.Context, meetingID string) ([]models.Recording, error)
}

// Handler handles operator recording endpoints.
type Handler struct {
	ingester Ingester
	lister   Lister
	logger   *zap.Logger
}

// NewHandler creates a recording handler.
func NewHandler(ingester Ingester, lister Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingester: ingester, lister: lister, logger: logger}
}

// Process handles POST /zoom/process-recording: replays ingestion for a
// payload without signature checks (operator use).
func (h *Handler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.ingester.Ingest(c.Request.Context(), req.Payload, req.DownloadToken)
	if err != nil {
		h.logger.Error("process recording", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListByMeeting handles GET /zoom/recordings/:id.
func (h *Handler) ListByMeeting(c *gin.Context) {
	list, err := h.lister.ListByMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list recordings", zap.String("zoom_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, list)
}

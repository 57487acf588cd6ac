package duplicates

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/pkg/response"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context, start, end string) (*Result, error)
}

// ReportStore lists and reads persisted reports.
type ReportStore interface {
	List(ctx context.Context) ([]ReportInfo, error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// DeleteRequest is the body for POST /sala/duplicados/eliminar.
type DeleteRequest struct {
	Start string `json:"fechaInicio" binding:"required"`
	End   string `json:"fechaFin" binding:"required"`
}

// Handler handles duplicate reconciliation and report endpoints.
type Handler struct {
	engine  Reconciler
	reports ReportStore
	logger  *zap.Logger
}

// NewHandler creates a reconciliation handler.
func NewHandler(engine Reconciler, reports ReportStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, reports: reports, logger: logger}
}

// DeleteDuplicates handles POST /sala/duplicados/eliminar.
func (h *Handler) DeleteDuplicates(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "fechaInicio y fechaFin son obligatorios (YYYY-MM-DD)")
		return
	}
	result, err := h.engine.Run(c.Request.Context(), req.Start, req.End)
	if err != nil {
		if domain.GetErrorType(err) != domain.ErrorTypeValidation {
			h.logger.Error("duplicate reconciliation", zap.String("start", req.Start), zap.String("end", req.End), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListReports handles GET /sala/reportes.
func (h *Handler) ListReports(c *gin.Context) {
	list, err := h.reports.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list reports", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// DownloadReport handles GET /sala/reportes/:nombre as a text attachment.
func (h *Handler) DownloadReport(c *gin.Context) {
	name := c.Param("nombre")
	data, err := h.reports.Get(c.Request.Context(), name)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeExternal {
			h.logger.Error("read report", zap.String("report", name), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, storage.ContentTypeText, data)
}

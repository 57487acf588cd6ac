package salas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/pkg/response"
)

// Store is the room persistence the handler needs.
type Store interface {
	ListVideosByRoom(ctx context.Context, roomID int64) ([]models.Attachment, error)
	FindModule(ctx context.Context, courseID int64, numeration string) (*models.CourseModule, error)
	AssignWithNextOrder(ctx context.Context, a *models.Attachment) error
	PatchRoom(ctx context.Context, roomID int64, patch RoomPatch) error
	DeleteAttachment(ctx context.Context, id int64) error
}

// Numeration accepts a module number sent either as a JSON string or number.
type Numeration string

func (n *Numeration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeration(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeracion must be a string or number: %w", err)
	}
	*n = Numeration(num.String())
	return nil
}

// AssignRequest is the body for POST /sala/asignar.
type AssignRequest struct {
	RoomIDs     []int64    `json:"salaIds" binding:"required,min=1"`
	CourseID    int64      `json:"cursoId" binding:"required"`
	Numeration  Numeration `json:"numeracion" binding:"required"`
	FileName    string     `json:"nombreArchivo" binding:"required"`
	DisplayName string     `json:"nombreFinal"`
}

// Assignment is one entry of POST /sala/asignar-multiple.
type Assignment struct {
	RoomID      int64      `json:"salaId" binding:"required"`
	CourseID    int64      `json:"cursoId" binding:"required"`
	Numeration  Numeration `json:"numeracion" binding:"required"`
	FileName    string     `json:"nombreArchivo" binding:"required"`
	DisplayName string     `json:"nombreFinal"`
}

// AssignMultipleRequest is the body for POST /sala/asignar-multiple.
type AssignMultipleRequest struct {
	Assignments []Assignment `json:"asignaciones" binding:"required,min=1,dive"`
}

// SkippedAssignment reports an entry that was not written.
type SkippedAssignment struct {
	Assignment
	Reason string `json:"motivo"`
}

// Handler handles room endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a room handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// ListVideos handles GET /sala/:id/videos.
func (h *Handler) ListVideos(c *gin.Context) {
	roomID, ok := parseID(c, "id")
	if !ok {
		return
	}
	videos, err := h.store.ListVideosByRoom(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("list room videos", zap.Int64("sala_id", roomID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, videos)
}

// Assign handles POST /sala/asignar: one video into every listed room at the
// next free position of the course module.
func (h *Handler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	module, err := h.store.FindModule(ctx, req.CourseID, string(req.Numeration))
	if err != nil {
		response.Error(c, err)
		return
	}

	created := make([]*models.Attachment, 0, len(req.RoomIDs))
	for _, roomID := range req.RoomIDs {
		a := models.NewVideoAttachment(module.ID, roomID, req.FileName, req.DisplayName, 0)
		if err := h.store.AssignWithNextOrder(ctx, a); err != nil {
			h.logger.Error("assign video", zap.Int64("sala_id", roomID), zap.String("file", req.FileName), zap.Error(err))
			response.Error(c, err)
			return
		}
		created = append(created, a)
	}
	h.logger.Info("video assigned", zap.String("file", req.FileName), zap.Int("rooms", len(created)))
	response.OK(c, gin.H{"message": "Video asignado correctamente a todas las salas", "adjuntos": created})
}

// AssignMultiple handles POST /sala/asignar-multiple. Entries whose module
// does not exist are skipped and reported.
func (h *Handler) AssignMultiple(c *gin.Context) {
	var req AssignMultipleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	created := []*models.Attachment{}
	skipped := []SkippedAssignment{}
	for _, as := range req.Assignments {
		module, err := h.store.FindModule(ctx, as.CourseID, string(as.Numeration))
		if domain.IsNotFound(err) {
			h.logger.Warn("assignment skipped, module not found",
				zap.Int64("curso_id", as.CourseID), zap.String("numeracion", string(as.Numeration)))
			skipped = append(skipped, SkippedAssignment{Assignment: as, Reason: err.Error()})
			continue
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		a := models.NewVideoAttachment(module.ID, as.RoomID, as.FileName, as.DisplayName, 0)
		if err := h.store.AssignWithNextOrder(ctx, a); err != nil {
			h.logger.Error("assign video", zap.Int64("sala_id", as.RoomID), zap.String("file", as.FileName), zap.Error(err))
			response.Error(c, err)
			return
		}
		created = append(created, a)
	}
	response.OK(c, gin.H{
		"message":  "Videos asignados correctamente a las salas y cursos indicados",
		"adjuntos": created,
		"omitidos": skipped,
	})
}

// PatchZoom handles PUT /sala/:id/zoom with an allow-listed set of columns.
func (h *Handler) PatchZoom(c *gin.Context) {
	roomID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	patch, err := ParseRoomPatch(body)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.store.PatchRoom(c.Request.Context(), roomID, patch); err != nil {
		if !domain.IsNotFound(err) {
			h.logger.Error("patch room", zap.Int64("sala_id", roomID), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Campos actualizados correctamente"})
}

// DeleteAttachment handles DELETE /sala/adjunto/:id.
func (h *Handler) DeleteAttachment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteAttachment(c.Request.Context(), id); err != nil {
		if !domain.IsNotFound(err) {
			h.logger.Error("delete attachment", zap.Int64("id", id), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Video adjunto eliminado correctamente"})
}

package meetings

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/internal/zoomapi"
	"github.com/amelidiaz19/zoom-api/pkg/response"
)

const zoomLocalLayout = "2006-01-02T15:04:05"

// Store is the meeting persistence used by the handler.
type Store interface {
	FindTagByName(ctx context.Context, name string) (*models.Tag, error)
	Create(ctx context.Context, m *models.Meeting) error
	ListByTag(ctx context.Context, tag string) ([]models.Meeting, error)
}

// ZoomClient is the subset of the Zoom API used for scheduling.
type ZoomClient interface {
	Token(ctx context.Context) (string, error)
	CreateMeeting(ctx context.Context, userEmail string, req *zoomapi.CreateMeetingRequest) (*zoomapi.MeetingResponse, error)
}

// CreateRequest is the body for POST /zoom/create.
type CreateRequest struct {
	UserEmail string `json:"userEmail" binding:"required,email"`
	Topic     string `json:"topic" binding:"required"`
	Password  string `json:"password"`
	StartTime string `json:"start_time" binding:"required"`
	Duration  int    `json:"duration"`
	Agenda    string `json:"agenda"` // naming code, stored as nomenclatura
	Tag       string `json:"tag" binding:"required"`
}

// JoinRequest is the body for POST /zoom/unirse.
type JoinRequest struct {
	MeetingID string `json:"meetingId" binding:"required"`
	Role      int    `json:"role"`
}

// Handler handles meeting scheduling endpoints.
type Handler struct {
	store  Store
	zoom   ZoomClient
	signer *SDKSigner
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates a meeting handler. loc is the civil zone meetings are scheduled in.
func NewHandler(store Store, zoom ZoomClient, signer *SDKSigner, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: store, zoom: zoom, signer: signer, loc: loc, logger: logger}
}

// Token handles GET /zoom/token.
func (h *Handler) Token(c *gin.Context) {
	token, err := h.zoom.Token(c.Request.Context())
	if err != nil {
		h.logger.Error("generate access token", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"access_token": token})
}

// Create handles POST /zoom/create.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	tag, err := h.store.FindTagByName(ctx, req.Tag)
	if err != nil {
		response.Error(c, err)
		return
	}
	startTime, err := localStartTime(req.StartTime, h.loc)
	if err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}

	created, err := h.zoom.CreateMeeting(ctx, req.UserEmail, &zoomapi.CreateMeetingRequest{
		Topic:     req.Topic,
		Type:      zoomapi.MeetingTypeScheduled,
		Password:  req.Password,
		StartTime: startTime,
		Agenda:    req.Agenda,
		Duration:  req.Duration,
		Settings: &zoomapi.MeetingSettings{
			HostVideo:        true,
			ParticipantVideo: true,
			MuteUponEntry:    false,
			WaitingRoom:      true,
			AutoRecording:    "cloud",
			JoinBeforeHost:   true,
			DownloadAccess:   false,
		},
	})
	if err != nil {
		h.logger.Error("create Zoom meeting", zap.String("host", req.UserEmail), zap.Error(err))
		response.Error(c, err)
		return
	}

	m := &models.Meeting{
		ZoomID:       strconv.FormatInt(created.ID, 10),
		Email:        created.HostEmail,
		Topic:        created.Topic,
		Nomenclatura: created.Agenda,
		Duration:     created.Duration,
		JoinURL:      created.JoinURL,
		StartURL:     created.StartURL,
		Password:     created.Password,
		TagID:        tag.ID,
	}
	if err := h.store.Create(ctx, m); err != nil {
		h.logger.Error("persist meeting", zap.String("zoom_id", m.ZoomID), zap.Error(err))
		response.Internal(c, "failed to save meeting")
		return
	}
	h.logger.Info("meeting scheduled",
		zap.String("zoom_id", m.ZoomID),
		zap.String("nomenclatura", m.Nomenclatura),
		zap.String("tag", tag.Name),
	)
	response.Created(c, m)
}

// List handles GET /zoom/list?tag=<name|id>.
func (h *Handler) List(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		response.BadRequest(c, "tag is required")
		return
	}
	list, err := h.store.ListByTag(c.Request.Context(), tag)
	if err != nil {
		h.logger.Error("list meetings", zap.String("tag", tag), zap.Error(err))
		response.Internal(c, "No se pudieron obtener las reuniones")
		return
	}
	response.OK(c, list)
}

// Join handles POST /zoom/unirse.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	signature, err := h.signer.Sign(req.MeetingID, req.Role)
	if err != nil {
		h.logger.Error("sign SDK token", zap.Error(err))
		response.Internal(c, "Error al generar la firma")
		return
	}
	response.OK(c, gin.H{"signature": signature})
}

// localStartTime renders start as wall-clock time in loc without an offset, the
// form Zoom expects for start_time when no timezone is sent. Inputs without an
// offset are taken as already local.
func localStartTime(start string, loc *time.Location) (string, error) {
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		return t.In(loc).Format(zoomLocalLayout), nil
	}
	t, err := time.ParseInLocation(zoomLocalLayout, start, loc)
	if err != nil {
		return "", domain.NewValidationError("invalid start_time", err)
	}
	return t.Format(zoomLocalLayout), nil
}

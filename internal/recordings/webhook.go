package recordings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/pkg/response"
)

// Webhook event names handled by the endpoint.
const (
	EventURLValidation      = "endpoint.url_validation"
	EventRecordingCompleted = "recording.completed"
)

// WebhookEvent is the envelope Zoom posts to the webhook endpoint.
type WebhookEvent struct {
	Event         string          `json:"event"`
	EventTS       int64           `json:"event_ts"`
	Payload       json.RawMessage `json:"payload"`
	DownloadToken string          `json:"download_token"`
}

// Ingester runs the recording ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, payload *RecordingPayload, downloadToken string) (*Result, error)
}

// WebhookHandler handles Zoom webhook deliveries.
type WebhookHandler struct {
	validator *SignatureValidator
	ingester  Ingester
	logger    *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(validator *SignatureValidator, ingester Ingester, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{validator: validator, ingester: ingester, logger: logger}
}

// Handle handles POST /zoom/webhook. The signature is computed over the raw
// body, so the body is read once and decoded by hand.
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cuerpo inválido"})
		return
	}
	var evt WebhookEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "cuerpo inválido"})
		return
	}
	log := h.logger.With(zap.String("event", evt.Event))

	// Zoom does not sign the URL validation challenge.
	if evt.Event != EventURLValidation {
		err := h.validator.Validate(raw, c.GetHeader("x-zm-signature"), c.GetHeader("x-zm-request-timestamp"))
		if err != nil {
			log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusForbidden, gin.H{"message": "Firma inválida"})
			return
		}
	}

	switch evt.Event {
	case EventURLValidation:
		var p struct {
			PlainToken string `json:"plainToken"`
		}
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.PlainToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "plainToken requerido"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"plainToken":     p.PlainToken,
			"encryptedToken": h.validator.EncryptToken(p.PlainToken),
		})
	case EventRecordingCompleted:
		var payload RecordingPayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "payload inválido"})
			return
		}
		result, err := h.ingester.Ingest(c.Request.Context(), &payload, evt.DownloadToken)
		if err != nil {
			log.Error("recording ingestion failed", zap.String("zoom_id", string(payload.Object.ID)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error interno"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": result.PublicURL})
	default:
		log.Info("webhook event ignored")
		response.BadRequest(c, "Evento no procesado")
	}
}

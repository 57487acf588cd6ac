package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amelidiaz19/zoom-api/internal/domain"
)

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domain.NewValidationError("Archivo MP4 no encontrado"), http.StatusBadRequest},
		{"not found", fmt.Errorf("ingest: %w", domain.NewNotFoundError("meeting 1 not found")), http.StatusNotFound},
		{"conflict", domain.NewConflictError("duplicate recording"), http.StatusConflict},
		{"external", domain.NewExternalError("zoom api failed"), http.StatusBadGateway},
		{"partial", domain.NewPartialFailureError("half done"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

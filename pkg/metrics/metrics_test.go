package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := New()
	m.ObserveProbe(true)
	m.ObserveProbe(false)
	m.ObserveProbe(false)
	m.ObserveReconciliation(3, 1)
	m.ObserveIngestion(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probeTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconciliationDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciliationFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordingsIngested.WithLabelValues("true")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveProbe(true)
	m.ObserveReconciliation(1, 1)
	m.ObserveIngestion(false)
}

func TestHandlerExposesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `zoom_api_http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}

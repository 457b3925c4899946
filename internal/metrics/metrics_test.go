package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registrar/internal/model"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveOperation("enroll_batch", "ok", 3*time.Millisecond)
	m.ObserveOperation("enroll_batch", "ok", time.Millisecond)
	m.ObserveOperation("enroll_batch", "CAPACITY_EXCEEDED", time.Millisecond)
	m.ObserveTrigger("audit", model.CollectionStudent, "handled", time.Millisecond)
	m.ObserveCursor("audit", model.CollectionStudent, 17)
	m.ObserveRiskAlert(model.RiskHigh)
	m.ObserveRollback()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("enroll_batch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("enroll_batch", "CAPACITY_EXCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggerEvents.WithLabelValues("audit", "student", "handled")))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.cursorPosition.WithLabelValues("audit", "student")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskAlerts.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacks))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveRollback()
	m.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "registrar_capacity_rollbacks_total 1")
	assert.Contains(t, string(body), `registrar_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("x", "ok", 0)
	m.ObserveTrigger("x", model.CollectionStudent, "handled", 0)
	m.ObserveCursor("x", model.CollectionStudent, 1)
	m.ObserveRiskAlert(model.RiskMedium)
	m.ObserveRollback()
	m.ObserveHTTPRequest("GET", "/", 200, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

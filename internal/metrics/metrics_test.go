package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ServiceCalls(t *testing.T) {
	m := New()

	m.ObserveServiceCall("ai_task", "generate_data", 20*time.Millisecond, nil)
	m.ObserveServiceCall("ai_task", "generate_data", time.Second, errors.New("boom"))
	m.ObserveServiceCall("ai_task", "generate_data", time.Second, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.serviceCalls.WithLabelValues("ai_task", "generate_data", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.serviceCalls.WithLabelValues("ai_task", "generate_data", "error")))
}

func TestMetrics_ResolutionsAndTasks(t *testing.T) {
	m := New()

	m.ObserveResolution("local", nil)
	m.ObserveResolution("s3", errors.New("denied"))
	m.ObserveEntityTask("ai_task.helper", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mediaResolutions.WithLabelValues("local", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mediaResolutions.WithLabelValues("s3", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityTasks.WithLabelValues("ai_task.helper", "success")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveServiceCall("ai_task", "generate_data", time.Second, nil)
		m.ObserveResolution("local", nil)
		m.ObserveEntityTask("ai_task.helper", nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveServiceCall("ai_task", "generate_data", time.Millisecond, nil)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `aitask_service_calls_total{domain="ai_task",outcome="success",service="generate_data"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

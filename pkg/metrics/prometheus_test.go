package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.ObserveCycle("completed", 200*time.Millisecond)
	p.ObserveCycle("completed", 300*time.Millisecond)
	p.ObserveCycle("no_live_session", time.Millisecond)
	p.IncBudgetRaise("success")
	p.SetSchedulerEnabled(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.cycles.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cycles.WithLabelValues("no_live_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.raises.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.schedulerEnabled))

	p.SetSchedulerEnabled(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.schedulerEnabled))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.IncNotification("budget_raised")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `autoads_notifications_total{kind="budget_raised"} 1`)
}

func TestPrometheus_ComponentHealth(t *testing.T) {
	p := NewPrometheus()

	p.SetComponentHealth("shopee", "healthy")
	p.SetComponentHealth("scheduler", "degraded")
	p.SetComponentHealth("store_synced", "unhealthy")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.componentHealth.WithLabelValues("shopee")))
	assert.Equal(t, 0.5, testutil.ToFloat64(p.componentHealth.WithLabelValues("scheduler")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.componentHealth.WithLabelValues("store_synced")))

	p.SetComponentHealth("shopee", "unhealthy")
	assert.Equal(t, 0.0, testutil.ToFloat64(p.componentHealth.WithLabelValues("shopee")))
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	APIRequests.WithLabelValues("GET", "/test", "200").Inc()
	if v := testutil.ToFloat64(APIRequests.WithLabelValues("GET", "/test", "200")); v < 1 {
		t.Fatalf("expected APIRequests >= 1, got %v", v)
	}

	before := testutil.ToFloat64(SessionRefreshes.WithLabelValues("rejected"))
	SessionRefreshes.WithLabelValues("rejected").Inc()
	if v := testutil.ToFloat64(SessionRefreshes.WithLabelValues("rejected")); v != before+1 {
		t.Fatalf("expected SessionRefreshes to grow by 1, got %v -> %v", before, v)
	}
}

func TestLogStreamsGauge(t *testing.T) {
	start := testutil.ToFloat64(LogStreams)
	LogStreams.Inc()
	LogStreams.Dec()
	if v := testutil.ToFloat64(LogStreams); v != start {
		t.Fatalf("expected gauge back at %v, got %v", start, v)
	}
}

func TestMetricsHandlerExposesMetrics(t *testing.T) {
	InstancesStarted.Inc()
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unisrv_mockapi_instances_started_total") {
		t.Fatal("instances counter missing from exposition")
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unisrv_mockapi_requests_total",
		Help: "Requests served by the mock provisioning API",
	}, []string{"method", "route", "code"})
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unisrv_mockapi_logins_total",
		Help: "Basic login attempts by outcome",
	}, []string{"outcome"})
	SessionRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unisrv_mockapi_session_refreshes_total",
		Help: "Session refresh attempts by outcome",
	}, []string{"outcome"})
	InstancesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unisrv_mockapi_instances_started_total",
		Help: "Instances created through the mock API",
	})
	InstancesStopped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unisrv_mockapi_instances_stopped_total",
		Help: "Instances stopped through the mock API",
	})
	LogStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "unisrv_mockapi_log_streams",
		Help: "Open instance log streams",
	})
)

func init() {
	prometheus.MustRegister(APIRequests)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(SessionRefreshes)
	prometheus.MustRegister(InstancesStarted)
	prometheus.MustRegister(InstancesStopped)
	prometheus.MustRegister(LogStreams)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

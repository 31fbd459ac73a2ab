// Package metrics owns the Prometheus registry for an assembled process.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/wireup/internal/version"
)

type ServerMetrics struct {
	reg      *prometheus.Registry
	handler  http.Handler
	inflight prometheus.Gauge
	reqTotal *prometheus.CounterVec
	reqDur   *prometheus.HistogramVec

	httpPanicTotal       prometheus.Counter
	ratelimitDeniedTotal prometheus.Counter
	errorsTotal          *prometheus.CounterVec

	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge

	hookAppliedTotal *prometheus.CounterVec
	hookFailedTotal  *prometheus.CounterVec

	reportDroppedTotal prometheus.Counter

	searchRequestsTotal *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics.
// Safe labels only (method, route, code) to avoid path/cardinality explosions.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of panics recovered by the raven filter",
		}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "go_version", "vcs_dirty"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		hookAppliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrumentation_hooks_applied_total",
			Help: "Instrumentation hooks applied at assembly, by target",
		}, []string{"target"}),
		hookFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrumentation_hooks_failed_total",
			Help: "Instrumentation hooks that failed to resolve or apply, by target",
		}, []string{"target"}),
		reportDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_events_dropped_total",
			Help: "Error report events dropped because the delivery queue was full",
		}),
		searchRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_client_requests_total",
			Help: "Outbound search client requests by status",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.httpPanicTotal,
		m.ratelimitDeniedTotal,
		m.errorsTotal,
		m.buildInfo,
		m.profilingActive,
		m.hookAppliedTotal,
		m.hookFailedTotal,
		m.reportDroppedTotal,
		m.searchRequestsTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncHookApplied(target string) {
	m.hookAppliedTotal.WithLabelValues(target).Inc()
}

func (m *ServerMetrics) IncHookFailed(target string) {
	m.hookFailedTotal.WithLabelValues(target).Inc()
}

func (m *ServerMetrics) IncReportDropped() {
	m.reportDroppedTotal.Inc()
}

func (m *ServerMetrics) IncSearchRequest(statusCode int) {
	m.searchRequestsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        app,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"go_version": vi.GoVersion,
		"vcs_dirty":  dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

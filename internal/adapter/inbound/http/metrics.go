package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gaepo/sheetlogin/internal/service"
)

// SessionCounter reports session counts for the session gauges.
type SessionCounter interface {
	Size() int
	Authenticated() int
}

// Metrics holds all Prometheus metrics for sheetlogin.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	LoginAttempts     *prometheus.CounterVec
	TableLoads        *prometheus.CounterVec
	TableLoadDuration prometheus.Histogram
	TableRows         prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
// When sessions is non-nil, session gauges read from it at scrape time.
func NewMetrics(reg prometheus.Registerer, sessions SessionCounter) *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sheetlogin",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sheetlogin",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		LoginAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sheetlogin",
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"result"},
		),
		TableLoads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sheetlogin",
				Name:      "table_loads_total",
				Help:      "Table fetches from the source by outcome",
			},
			[]string{"source", "result"}, // result=success/error
		),
		TableLoadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sheetlogin",
				Name:      "table_load_duration_seconds",
				Help:      "Time spent fetching the table from the source",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		TableRows: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sheetlogin",
				Name:      "table_rows",
				Help:      "Number of rows in the current table snapshot",
			},
		),
	}

	if sessions != nil {
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "sheetlogin",
				Name:      "active_sessions",
				Help:      "Number of stored sessions",
			},
			func() float64 { return float64(sessions.Size()) },
		)
		promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "sheetlogin",
				Name:      "authenticated_sessions",
				Help:      "Number of live sessions with a logged-in student",
			},
			func() float64 { return float64(sessions.Authenticated()) },
		)
	}

	return m
}

// RecordLoginAttempt counts one login attempt. Wire it with
// LoginService.SetOnAttempt.
func (m *Metrics) RecordLoginAttempt(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordTableLoad records one table fetch. Wire it with TableLoader.SetOnLoad.
func (m *Metrics) RecordTableLoad(res service.LoadResult) {
	result := "success"
	if res.Err != nil {
		result = "error"
	}
	m.TableLoads.WithLabelValues(res.Source, result).Inc()
	m.TableLoadDuration.Observe(res.Duration.Seconds())
	if res.Err != nil {
		m.TableRows.Set(0)
		return
	}
	m.TableRows.Set(float64(res.Rows))
}

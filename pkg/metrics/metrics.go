package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles Prometheus collectors for the tracker.
type Metrics struct {
	Registry           *prometheus.Registry
	ChecksTotal        *prometheus.CounterVec
	CheckDuration      prometheus.Histogram
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	PriceChangesTotal  prometheus.Counter
	PriceAlertsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	TasksInFlight      prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_checks_total",
			Help: "Total product checks by final status.",
		}, []string{"status"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_check_duration_seconds",
			Help:    "Duration of a single product check including retries.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_retries_total",
			Help: "Total number of retry attempts scheduled.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_errors_total",
			Help: "Total number of failed checks by error kind.",
		}, []string{"error_kind"}),
		PriceChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_price_changes_total",
			Help: "Total number of detected price changes.",
		}),
		PriceAlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_price_alerts_total",
			Help: "Price changes beyond the alert thresholds by direction.",
		}, []string{"direction"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_notifications_total",
			Help: "Notifications sent by kind and result.",
		}, []string{"kind", "result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Duration of complete check cycles.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_tasks_in_flight",
			Help: "Number of product checks currently running.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricewatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	registry.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.RetriesTotal,
		m.ErrorsTotal,
		m.PriceChangesTotal,
		m.PriceAlertsTotal,
		m.NotificationsTotal,
		m.RunDuration,
		m.TasksInFlight,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCheck records one finished product check.
func (m *Metrics) ObserveCheck(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(status).Inc()
	m.CheckDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// IncPriceChange increments the price change counter.
func (m *Metrics) IncPriceChange() {
	if m == nil {
		return
	}
	m.PriceChangesTotal.Inc()
}

// IncPriceAlert counts a significant price change.
func (m *Metrics) IncPriceAlert(direction string) {
	if m == nil {
		return
	}
	m.PriceAlertsTotal.WithLabelValues(direction).Inc()
}

// IncNotification records a notification attempt.
func (m *Metrics) IncNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRun records a finished cycle.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// TaskStarted and TaskFinished track in-flight checks.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.TasksInFlight.Inc()
}

func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(code)
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	remindersSent   prometheus.Counter
	lettersStored   *prometheus.CounterVec
	emailsQueued    *prometheus.CounterVec
	uploadFallbacks prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the API's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	remindersSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Total deadline reminders dispatched",
	})

	lettersStored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "letters_stored_total",
		Help: "Total letter versions persisted",
	}, []string{"kind"})

	emailsQueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_queued_total",
		Help: "Total emails placed on the outbound queue",
	}, []string{"kind"})

	uploadFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_fallbacks_total",
		Help: "Total uploads that used the server-side fallback path",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, remindersSent, lettersStored, emailsQueued, uploadFallbacks, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		remindersSent:   remindersSent,
		lettersStored:   lettersStored,
		emailsQueued:    emailsQueued,
		uploadFallbacks: uploadFallbacks,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordReminderSent counts one dispatched reminder.
func (m *MetricsService) RecordReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

// RecordLetterStored counts one persisted letter version. kind is "content",
// "file" or "mixed".
func (m *MetricsService) RecordLetterStored(kind string) {
	if m == nil {
		return
	}
	m.lettersStored.WithLabelValues(kind).Inc()
}

// RecordEmailQueued counts one outbound email by kind.
func (m *MetricsService) RecordEmailQueued(kind string) {
	if m == nil {
		return
	}
	m.emailsQueued.WithLabelValues(kind).Inc()
}

// RecordUploadFallback counts one server-side fallback upload.
func (m *MetricsService) RecordUploadFallback() {
	if m == nil {
		return
	}
	m.uploadFallbacks.Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

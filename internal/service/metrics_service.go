package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/seatwatch/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the monitor and
// its ops API. All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	cyclesTotal     *prometheus.CounterVec
	pageFetches     *prometheus.CounterVec
	pageDuration    prometheus.Histogram
	inflightFetches prometheus.Gauge
	transitions     *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	sectionsAdded   prometheus.Counter
	lastCycle       prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
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

	cycleDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seatwatch_cycle_duration_seconds",
		Help:    "Duration of scheduler cycles",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"state"})

	cyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatwatch_cycles_total",
		Help: "Scheduler cycles run, by state",
	}, []string{"state"})

	pageFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatwatch_page_fetches_total",
		Help: "Enrollment page fetches, by result",
	}, []string{"result"})

	pageDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seatwatch_page_fetch_seconds",
		Help:    "Latency of enrollment page fetches",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
	})

	inflightFetches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "seatwatch_page_fetches_in_flight",
		Help: "Enrollment page fetches currently in flight",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatwatch_transitions_total",
		Help: "Section reconciliations, by transition",
	}, []string{"transition"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatwatch_deliveries_total",
		Help: "Push deliveries, by result",
	}, []string{"result"})

	sectionsAdded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seatwatch_sections_inserted_total",
		Help: "Sections added to the catalog by resync",
	})

	lastCycle := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "seatwatch_last_cycle_timestamp_seconds",
		Help: "Unix time the last cycle finished",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cycleDuration, cyclesTotal, pageFetches, pageDuration,
		inflightFetches, transitions, deliveries, sectionsAdded, lastCycle, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cycleDuration:   cycleDuration,
		cyclesTotal:     cyclesTotal,
		pageFetches:     pageFetches,
		pageDuration:    pageDuration,
		inflightFetches: inflightFetches,
		transitions:     transitions,
		deliveries:      deliveries,
		sectionsAdded:   sectionsAdded,
		lastCycle:       lastCycle,
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records ops API request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// FetchStarted marks one page fetch in flight.
func (m *MetricsService) FetchStarted() {
	if m == nil {
		return
	}
	m.inflightFetches.Inc()
}

// FetchFinished records a completed page fetch.
func (m *MetricsService) FetchFinished(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.inflightFetches.Dec()
	m.pageDuration.Observe(duration.Seconds())
	if err != nil {
		m.pageFetches.WithLabelValues("failed").Inc()
		return
	}
	m.pageFetches.WithLabelValues("ok").Inc()
}

// ObserveTransition counts one reconciled section.
func (m *MetricsService) ObserveTransition(t models.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(t)).Inc()
}

// ObserveDelivery counts one push attempt.
func (m *MetricsService) ObserveDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.deliveries.WithLabelValues("ok").Inc()
		return
	}
	m.deliveries.WithLabelValues("failed").Inc()
}

// ObserveCycle records a finished cycle.
func (m *MetricsService) ObserveCycle(report models.CycleReport) {
	if m == nil {
		return
	}
	state := string(report.State)
	m.cyclesTotal.WithLabelValues(state).Inc()
	m.cycleDuration.WithLabelValues(state).Observe(report.Duration().Seconds())
	m.sectionsAdded.Add(float64(report.SectionsInserted))
	m.lastCycle.Set(float64(report.FinishedAt.Unix()))
}

package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TelemetryService encapsulates Prometheus instrumentation for the HTTP
// surface, the aggregate cache and event-store reads.
type TelemetryService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	queryDuration   *prometheus.HistogramVec
	queryFailures   *prometheus.CounterVec
	ingestedEvents  prometheus.Counter
}

// NewTelemetryService registers the core collectors.
func NewTelemetryService() *TelemetryService {
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggregate_cache_hits_total",
		Help: "Total aggregate cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggregate_cache_misses_total",
		Help: "Total aggregate cache misses",
	})

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_store_query_duration_seconds",
		Help:    "Duration of event store window reads per metric",
		Buckets: prometheus.DefBuckets,
	}, []string{"metric"})

	queryFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_store_query_failures_total",
		Help: "Failed event store window reads per metric",
	}, []string{"metric"})

	ingestedEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingested_events_total",
		Help: "Total events accepted by the ingestion gateway",
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, queryDuration, queryFailures, ingestedEvents)

	return &TelemetryService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		queryDuration:   queryDuration,
		queryFailures:   queryFailures,
		ingestedEvents:  ingestedEvents,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *TelemetryService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records a served request.
func (s *TelemetryService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordCacheLookup records an aggregate cache hit or miss.
func (s *TelemetryService) RecordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

// ObserveEventStoreQuery records one window read for a metric.
func (s *TelemetryService) ObserveEventStoreQuery(metric string, duration time.Duration, ok bool) {
	s.queryDuration.WithLabelValues(metric).Observe(duration.Seconds())
	if !ok {
		s.queryFailures.WithLabelValues(metric).Inc()
	}
}

// RecordIngestedEvents bumps the accepted-event counter.
func (s *TelemetryService) RecordIngestedEvents(n int) {
	if n > 0 {
		s.ingestedEvents.Add(float64(n))
	}
}

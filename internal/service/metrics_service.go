package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/institute-grading-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	gradeEntries     *prometheus.CounterVec
	finalResults     *prometheus.CounterVec
	recalculations   *prometheus.CounterVec
	recalcDuration   prometheus.Observer
	profileLookupErr prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	gradesAccepted       uint64
	gradesRejected       uint64
	recordsRecalculated  uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	gradeEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_entries_total",
		Help: "Grade entry attempts by outcome",
	}, []string{"outcome"})

	finalResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_final_results_total",
		Help: "Computed final results by status",
	}, []string{"status"})

	recalculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grading_recalculated_records_total",
		Help: "Records recalculated after a distribution change, by outcome",
	}, []string{"outcome"})

	recalcDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grading_recalculation_seconds",
		Help:    "Duration of profile recalculation runs",
		Buckets: prometheus.DefBuckets,
	})

	profileLookupErr := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grading_profile_not_configured_total",
		Help: "Lookups that found no governing distribution",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		gradeEntries, finalResults, recalculations, recalcDuration, profileLookupErr, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		gradeEntries:     gradeEntries,
		finalResults:     finalResults,
		recalculations:   recalculations,
		recalcDuration:   recalcDuration,
		profileLookupErr: profileLookupErr,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordGradeEntry counts an accepted or rejected grade entry.
func (m *MetricsService) RecordGradeEntry(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.gradeEntries.WithLabelValues("accepted").Inc()
		atomic.AddUint64(&m.gradesAccepted, 1)
		return
	}
	m.gradeEntries.WithLabelValues("rejected").Inc()
	atomic.AddUint64(&m.gradesRejected, 1)
}

// RecordFinalResult counts a computed final result by status.
func (m *MetricsService) RecordFinalResult(status models.ResultStatus) {
	if m == nil {
		return
	}
	m.finalResults.WithLabelValues(string(status)).Inc()
}

// RecordNotConfigured counts a lookup with no governing distribution.
func (m *MetricsService) RecordNotConfigured() {
	if m == nil {
		return
	}
	m.profileLookupErr.Inc()
}

// ObserveRecalculation records the outcome of a profile recalculation run.
func (m *MetricsService) ObserveRecalculation(updated, failed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.recalculations.WithLabelValues("updated").Add(float64(updated))
	m.recalculations.WithLabelValues("failed").Add(float64(failed))
	m.recalcDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.recordsRecalculated, uint64(updated))
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		GradesAccepted:           atomic.LoadUint64(&m.gradesAccepted),
		GradesRejected:           atomic.LoadUint64(&m.gradesRejected),
		RecordsRecalculated:      atomic.LoadUint64(&m.recordsRecalculated),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

package models

import "time"

// MetricsSnapshot summarises runtime counters for the admin metrics endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	GradesAccepted           uint64    `json:"grades_accepted"`
	GradesRejected           uint64    `json:"grades_rejected"`
	RecordsRecalculated      uint64    `json:"records_recalculated"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

package models

import "time"

// SystemMetrics is a point-in-time view of the service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	EnrollmentsCommitted     uint64    `json:"enrollments_committed"`
	EnrollmentsRejected      uint64    `json:"enrollments_rejected"`
	DropsCommitted           uint64    `json:"drops_committed"`
	NotificationsDelivered   uint64    `json:"notifications_delivered"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

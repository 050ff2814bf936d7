package domain

import "time"

// AnalyticsConfig controls the optional fired-alarm counters kept in
// Redis time buckets alongside the records themselves.
type AnalyticsConfig struct {
	Enabled   bool
	Window    time.Duration // bucket size: 1m, 5m, 1h
	Retention time.Duration // TTL, must be >= Window
}

// Package analytics records what people search for and how the index is
// built. Events flow from a Collector on the serving path to Kafka, and an
// Aggregator folds them into the stats served at /api/v1/analytics.
package analytics

import "time"

// Message keys used on the analytics topic.
const (
	KeySearch = "search"
	KeyBuild  = "build"
)

type SearchEvent struct {
	Query      string    `json:"query"`
	Normalized string    `json:"normalized"`
	Clauses    int       `json:"clauses"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	Fallback   bool      `json:"fallback"`
	LatencyUs  int64     `json:"latency_us"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

type BuildEvent struct {
	Generation  uint64    `json:"generation"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Skipped     int       `json:"skipped"`
	Duplicates  int       `json:"duplicates"`
	DurationMs  int64     `json:"duration_ms"`
	Failed      bool      `json:"failed"`
	Timestamp   time.Time `json:"timestamp"`
}

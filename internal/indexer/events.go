package indexer

import "time"

// CorpusUpdateEvent asks indexers to rebuild from their source. Any
// decodable message triggers a full rebuild; the fields are informational.
type CorpusUpdateEvent struct {
	Source    string    `json:"source,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexCompleteEvent announces a freshly written snapshot so searchers can
// load it.
type IndexCompleteEvent struct {
	Generation  uint64    `json:"generation"`
	Fingerprint string    `json:"fingerprint"`
	Snapshot    string    `json:"snapshot"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Timestamp   time.Time `json:"timestamp"`
}

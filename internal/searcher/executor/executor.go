// Package executor evaluates parsed queries against the served index and
// assembles ranked, snippeted results.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// SnapshotSource supplies the index to query; *indexer.Engine satisfies it.
type SnapshotSource interface {
	Snapshot() *indexer.Snapshot
}

type Executor struct {
	source       SnapshotSource
	snippetWidth int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New returns an Executor over source. m may be nil.
func New(source SnapshotSource, snippetWidth int, m *metrics.Metrics) *Executor {
	if snippetWidth <= 0 {
		snippetWidth = snippet.DefaultWidth
	}
	return &Executor{
		source:       source,
		snippetWidth: snippetWidth,
		metrics:      m,
		logger:       slog.Default().With("component", "query-executor"),
	}
}

// Snapshot returns the snapshot the next Execute would run against.
func (e *Executor) Snapshot() *indexer.Snapshot {
	return e.source.Snapshot()
}

// Fingerprint identifies the index the next Execute will run against.
func (e *Executor) Fingerprint() string {
	return e.source.Snapshot().Index.Fingerprint()
}

// Execute runs plan against the current snapshot.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	return e.ExecuteSnapshot(ctx, e.source.Snapshot(), plan, limit)
}

// ExecuteSnapshot runs plan against snap. Callers that key caches by the
// index fingerprint pin the snapshot first so a concurrent swap never
// stores one index's results under another's key.
func (e *Executor) ExecuteSnapshot(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	result := Run(snap.Index, plan, limit, e.snippetWidth)
	result.Generation = snap.Generation

	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(outcome(result)).Inc()
		e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
	logger.FromContext(ctx).With("component", "query-executor").Info("query executed",
		"query", plan.RawQuery,
		"clauses", len(plan.Clauses),
		"fallback", result.Fallback,
		"total_hits", result.TotalHits,
		"results", len(result.Results),
		"generation", snap.Generation,
		"duration_us", time.Since(start).Microseconds(),
	)
	return result, nil
}

func outcome(r *SearchResult) string {
	switch {
	case r.TotalHits == 0:
		return metrics.OutcomeEmpty
	case r.Fallback:
		return metrics.OutcomeOrFallback
	default:
		return metrics.OutcomeAnd
	}
}

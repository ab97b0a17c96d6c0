package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Snapshot is one published index together with how it was produced.
type Snapshot struct {
	Index       *index.Index
	Generation  uint64
	Report      *corpus.BuildReport
	PublishedAt time.Time
}

// Engine holds the index currently being served. Readers load it without
// locking; a rebuild prepares a new index off to the side and swaps it in
// only once it is complete, so queries never observe a half-built state.
type Engine struct {
	current atomic.Pointer[Snapshot]
	buildMu sync.Mutex
	opts    BuildOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Engine)

// WithMetrics records build outcomes and index size on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine returns an Engine serving an empty index.
func NewEngine(opts BuildOptions, options ...Option) *Engine {
	e := &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "indexer"),
	}
	for _, o := range options {
		o(e)
	}
	e.current.Store(&Snapshot{Index: index.Empty(), PublishedAt: time.Now()})
	return e
}

// Current returns the index to query. It is never nil.
func (e *Engine) Current() *index.Index {
	return e.current.Load().Index
}

// Snapshot returns the current index along with its generation and report.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

func (e *Engine) Generation() uint64 {
	return e.current.Load().Generation
}

// Rebuild builds a new index from records and publishes it, returning the
// snapshot it published. On any error the previously published index stays
// in place. Concurrent rebuilds run one at a time.
func (e *Engine) Rebuild(ctx context.Context, records []corpus.Record) (*Snapshot, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	idx, report, err := Build(ctx, records, e.opts)
	e.observeBuild(report, err, time.Since(start))
	if err != nil {
		e.logger.Error("rebuild failed, keeping current index",
			"generation", e.Generation(),
			"error", err,
		)
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}
	return e.Publish(idx, report), nil
}

// Publish swaps idx in as the current index, e.g. after loading it from a
// snapshot file. report may be nil.
func (e *Engine) Publish(idx *index.Index, report *corpus.BuildReport) *Snapshot {
	if idx == nil {
		idx = index.Empty()
	}
	for {
		prev := e.current.Load()
		next := &Snapshot{
			Index:       idx,
			Generation:  prev.Generation + 1,
			Report:      report,
			PublishedAt: time.Now(),
		}
		if e.current.CompareAndSwap(prev, next) {
			e.logger.Info("index published",
				"generation", next.Generation,
				"documents", idx.TotalDocs(),
				"terms", idx.NumTerms(),
				"fingerprint", idx.Fingerprint(),
			)
			if e.metrics != nil {
				e.metrics.IndexDocuments.Set(float64(idx.TotalDocs()))
				e.metrics.IndexTerms.Set(float64(idx.NumTerms()))
				e.metrics.IndexGeneration.Set(float64(next.Generation))
			}
			return next
		}
	}
}

func (e *Engine) observeBuild(report *corpus.BuildReport, err error, took time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildDuration.Observe(took.Seconds())
	switch {
	case errors.Is(err, apperrors.ErrCancelled):
		e.metrics.IndexBuildsTotal.WithLabelValues("cancelled").Inc()
	case err != nil:
		e.metrics.IndexBuildsTotal.WithLabelValues("failed").Inc()
	case report.Empty:
		e.metrics.IndexBuildsTotal.WithLabelValues("empty").Inc()
	default:
		e.metrics.IndexBuildsTotal.WithLabelValues("ok").Inc()
	}
	if report != nil {
		e.metrics.RecordsSkippedTotal.WithLabelValues("malformed").Add(float64(len(report.Skipped)))
		e.metrics.RecordsSkippedTotal.WithLabelValues("duplicate").Add(float64(len(report.Duplicates)))
	}
}

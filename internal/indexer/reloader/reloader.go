// Package reloader drives a full rebuild: fetch the corpus from its source,
// build and publish the index, then persist and announce the result.
package reloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/buildlog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// BuildRecorder persists build history; *buildlog.Store satisfies it.
type BuildRecorder interface {
	Record(ctx context.Context, e *buildlog.Entry) error
}

type Reloader struct {
	engine    *indexer.Engine
	source    source.Source
	writer    *segment.Writer
	builds    BuildRecorder
	publisher kafka.Publisher
	collector *analytics.Collector
	retry     resilience.RetryConfig
	timeout   time.Duration
	reloads   atomic.Int64
	logger    *slog.Logger
}

type Option func(*Reloader)

// WithSnapshots writes every published index to w.
func WithSnapshots(w *segment.Writer) Option {
	return func(r *Reloader) { r.writer = w }
}

func WithBuildLog(b BuildRecorder) Option {
	return func(r *Reloader) { r.builds = b }
}

// WithPublisher announces each published index on the index-complete topic.
func WithPublisher(p kafka.Publisher) Option {
	return func(r *Reloader) { r.publisher = p }
}

func WithCollector(c *analytics.Collector) Option {
	return func(r *Reloader) { r.collector = c }
}

// WithRetry retries failed fetches with backoff, bounding each attempt by
// timeout when it is positive.
func WithRetry(cfg resilience.RetryConfig, timeout time.Duration) Option {
	return func(r *Reloader) {
		r.retry = cfg
		r.timeout = timeout
	}
}

func New(engine *indexer.Engine, src source.Source, opts ...Option) *Reloader {
	r := &Reloader{
		engine: engine,
		source: src,
		retry:  resilience.RetryConfig{MaxAttempts: 1},
		logger: slog.Default().With("component", "reloader"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Result describes one successful reload.
type Result struct {
	Snapshot *indexer.Snapshot
	// File is the snapshot file name, empty when snapshots are not written.
	File string
	// Trace times each phase of the reload.
	Trace *tracing.Span
}

// Reload rebuilds the index from the source. A failure to fetch or build
// leaves the served index untouched. Failures after publishing (snapshot
// write, build log, announcement) are logged and the first is returned, but
// the new index stays published.
func (r *Reloader) Reload(ctx context.Context) (res *Result, err error) {
	n := r.reloads.Add(1)
	start := time.Now()
	ctx, trace := tracing.StartSpan(ctx, "reload", fmt.Sprintf("reload-%d", n))
	defer func() {
		trace.End(err)
		trace.Log(ctx, r.logger)
	}()
	r.logger.Info("reload started", "source", r.source.String())

	records, err := r.fetch(ctx)
	if err != nil {
		r.trackFailure(start)
		return nil, fmt.Errorf("fetching records from %s: %w", r.source, err)
	}
	_, span := tracing.StartChildSpan(ctx, "build")
	snap, err := r.engine.Rebuild(ctx, records)
	span.End(err)
	if err != nil {
		r.trackFailure(start)
		return nil, err
	}
	span.SetAttr("generation", snap.Generation)
	res = &Result{Snapshot: snap, Trace: trace}
	idx := snap.Index

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if r.writer != nil {
		_, span := tracing.StartChildSpan(ctx, "snapshot")
		name, err := r.writer.Write(idx)
		span.End(err)
		if err != nil {
			r.logger.Error("snapshot write failed", "generation", snap.Generation, "error", err)
			keep(fmt.Errorf("writing snapshot: %w", err))
		} else {
			res.File = name
		}
	}
	if r.builds != nil {
		entry := &buildlog.Entry{
			Generation:  snap.Generation,
			Fingerprint: idx.Fingerprint(),
			Source:      r.source.String(),
			Snapshot:    res.File,
			Report:      snap.Report,
		}
		_, span := tracing.StartChildSpan(ctx, "buildlog")
		err := r.builds.Record(ctx, entry)
		span.End(err)
		if err != nil {
			r.logger.Error("build log write failed", "generation", snap.Generation, "error", err)
			keep(fmt.Errorf("recording build: %w", err))
		}
	}
	if r.publisher != nil && res.File != "" {
		event := indexer.IndexCompleteEvent{
			Generation:  snap.Generation,
			Fingerprint: idx.Fingerprint(),
			Snapshot:    res.File,
			Documents:   idx.TotalDocs(),
			Terms:       idx.NumTerms(),
			Timestamp:   time.Now().UTC(),
		}
		_, span := tracing.StartChildSpan(ctx, "announce")
		err := r.publisher.Publish(ctx, kafka.Event{Key: idx.Fingerprint(), Value: event})
		span.End(err)
		if err != nil {
			r.logger.Error("index-complete publish failed", "generation", snap.Generation, "error", err)
			keep(fmt.Errorf("announcing index: %w", err))
		}
	}
	if r.collector != nil {
		report := snap.Report
		r.collector.TrackBuild(analytics.BuildEvent{
			Generation:  snap.Generation,
			Fingerprint: idx.Fingerprint(),
			Documents:   idx.TotalDocs(),
			Terms:       idx.NumTerms(),
			Skipped:     len(report.Skipped),
			Duplicates:  len(report.Duplicates),
			DurationMs:  time.Since(start).Milliseconds(),
			Timestamp:   time.Now().UTC(),
		})
	}

	r.logger.Info("reload complete",
		"generation", snap.Generation,
		"documents", idx.TotalDocs(),
		"snapshot", res.File,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, firstErr
}

func (r *Reloader) fetch(ctx context.Context) ([]corpus.Record, error) {
	ctx, span := tracing.StartChildSpan(ctx, "fetch")
	var records []corpus.Record
	err := resilience.Retry(ctx, "fetch "+r.source.String(), r.retry, func() error {
		return resilience.WithTimeout(ctx, r.timeout, "fetch", func(ctx context.Context) error {
			var err error
			records, err = r.source.Records(ctx)
			if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrNotFound) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	span.SetAttr("records", len(records))
	span.End(err)
	return records, err
}

// Reloads returns how many reloads have been attempted.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

func (r *Reloader) trackFailure(start time.Time) {
	if r.collector == nil {
		return
	}
	r.collector.TrackBuild(analytics.BuildEvent{
		Failed:     true,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}

// Package indexer builds immutable search indexes from the documentation
// record sequence and holds the one currently being served.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const DefaultBatchSize = 256

// BuildOptions tunes a build. The zero value is a lenient build using one
// worker per CPU.
type BuildOptions struct {
	Mode      corpus.Mode
	Workers   int
	BatchSize int
}

// OptionsFromConfig maps the indexer section of the service config onto
// BuildOptions.
func OptionsFromConfig(cfg config.IndexerConfig) (BuildOptions, error) {
	mode, err := corpus.ParseMode(cfg.Mode)
	if err != nil {
		return BuildOptions{}, err
	}
	return BuildOptions{Mode: mode, Workers: cfg.Workers, BatchSize: cfg.BatchSize}, nil
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Build loads records and indexes the surviving documents. A strict-mode
// load failure is returned unchanged. An empty corpus is not an error: it
// yields an empty Index with report.Empty set. If ctx is cancelled between
// batches the build stops and returns an error wrapping ErrCancelled; no
// Index is produced.
func Build(ctx context.Context, records []corpus.Record, opts BuildOptions) (*index.Index, *corpus.BuildReport, error) {
	start := time.Now()
	logger := slog.Default().With("component", "index-builder")

	docs, report, err := corpus.Load(records, opts.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	idx, err := BuildDocuments(ctx, docs, opts)
	if err != nil {
		return nil, nil, err
	}

	report.Terms = idx.NumTerms()
	report.Postings = idx.NumPostings()
	report.DurationMs = time.Since(start).Milliseconds()
	if report.Empty {
		logger.Warn("corpus has no valid documents, index is empty",
			"records", report.Records,
			"skipped", len(report.Skipped),
		)
	}
	logger.Info("index built",
		"records", report.Records,
		"documents", report.Documents,
		"anchor_only", report.AnchorOnly,
		"terms", report.Terms,
		"postings", report.Postings,
		"skipped", len(report.Skipped),
		"duplicates", len(report.Duplicates),
		"duration_ms", report.DurationMs,
	)
	return idx, report, nil
}

// BuildDocuments indexes already-validated documents with dense IDs.
// Documents are split into batches that are accumulated in parallel; each
// partial lands in the slot of its DocID, so the merge never depends on
// which worker finished first.
func BuildDocuments(ctx context.Context, docs []corpus.Document, opts BuildOptions) (*index.Index, error) {
	opts = opts.withDefaults()
	logger := slog.Default().With("component", "index-builder")

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	parts := make([]index.DocTerms, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for lo := 0; lo < len(docs); lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, len(docs))
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				parts[i] = index.Accumulate(docs[i])
			}
			logger.Debug("batch accumulated", "from", lo, "to", hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, cancelled(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	idx, err := index.New(docs, index.Merge(parts))
	if err != nil {
		return nil, fmt.Errorf("assembling index: %w", err)
	}
	return idx, nil
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrCancelled, cause)
}

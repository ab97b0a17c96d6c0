// Package consumer connects the indexer engine to Kafka. Indexers rebuild on
// corpus-update events; searchers load the snapshot named by index-complete
// events.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/reloader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// IndexConsumer wraps a Kafka consumer that feeds one of the handlers below.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// Reloader is satisfied by *reloader.Reloader.
type Reloader interface {
	Reload(ctx context.Context) (*reloader.Result, error)
}

// HandleCorpusUpdate rebuilds on every corpus-update event. Undecodable
// messages are dropped. A failed fetch or build is returned so the consumer
// retries the message; a build that published but could not be persisted is
// only logged.
func HandleCorpusUpdate(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.CorpusUpdateEvent](value)
		if err != nil {
			logger.Error("failed to decode corpus update", "error", err, "key", string(key))
			return nil
		}
		logger.Info("corpus update received", "source", event.Source, "reason", event.Reason)

		res, err := r.Reload(ctx)
		if res == nil {
			return fmt.Errorf("reloading after corpus update: %w", err)
		}
		if err != nil {
			logger.Warn("index published with errors", "generation", res.Snapshot.Generation, "error", err)
		}
		return nil
	}
}

// PublishHook runs after a snapshot has been loaded and published.
type PublishHook func(ctx context.Context, snap *indexer.Snapshot)

// HandleIndexComplete loads the announced snapshot from dataDir and
// publishes it into engine. Events for the index already being served are
// ignored. onPublish may be nil.
func HandleIndexComplete(engine *indexer.Engine, dataDir string, onPublish PublishHook) kafka.MessageHandler {
	logger := slog.Default().With("component", "snapshot-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexCompleteEvent](value)
		if err != nil || event.Snapshot == "" {
			logger.Error("invalid index-complete event", "error", err, "key", string(key))
			return nil
		}
		if event.Fingerprint == engine.Current().Fingerprint() {
			logger.Debug("snapshot already served", "fingerprint", event.Fingerprint)
			return nil
		}

		path := filepath.Join(dataDir, filepath.Base(event.Snapshot))
		snap, err := LoadSnapshot(engine, path)
		if err != nil {
			if errors.Is(err, apperrors.ErrSnapshotCorrupt) {
				logger.Error("announced snapshot is corrupt, skipping", "path", path, "error", err)
				return nil
			}
			return err
		}
		if event.Fingerprint != "" && snap.Index.Fingerprint() != event.Fingerprint {
			logger.Warn("snapshot fingerprint differs from announcement",
				"announced", event.Fingerprint,
				"loaded", snap.Index.Fingerprint(),
			)
		}
		if onPublish != nil {
			onPublish(ctx, snap)
		}
		return nil
	}
}

// LoadSnapshot reads the snapshot at path and publishes it.
func LoadSnapshot(engine *indexer.Engine, path string) (*indexer.Snapshot, error) {
	idx, _, err := segment.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return engine.Publish(idx, nil), nil
}

// LoadLatest publishes the newest snapshot in dataDir. It returns an error
// wrapping ErrNotFound when the directory holds none.
func LoadLatest(engine *indexer.Engine, dataDir string) (*indexer.Snapshot, error) {
	path, err := segment.Latest(dataDir)
	if err != nil {
		return nil, err
	}
	return LoadSnapshot(engine, path)
}

package reloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/buildlog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

type staticSource struct {
	records []corpus.Record
	err     error
}

func (s *staticSource) Records(ctx context.Context) ([]corpus.Record, error) {
	return s.records, s.err
}

func (s *staticSource) String() string { return "static" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		p.Publish(ctx, e)
	}
	return nil
}

type memoryBuildLog struct {
	entries []*buildlog.Entry
	err     error
}

func (m *memoryBuildLog) Record(ctx context.Context, e *buildlog.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func payloadSource() source.Source {
	return &source.FileSource{Path: filepath.Join("..", "..", "corpus", "testdata", "search_index.js")}
}

func TestReload_PublishesPersistsAndAnnounces(t *testing.T) {
	dir := t.TempDir()
	engine := indexer.NewEngine(indexer.BuildOptions{})
	pub := &recordingPublisher{}
	builds := &memoryBuildLog{}
	local := analytics.NewAggregator()
	r := New(engine, payloadSource(),
		WithSnapshots(segment.NewWriter(dir)),
		WithBuildLog(builds),
		WithPublisher(pub),
		WithCollector(analytics.NewCollector(nil, local, 0, time.Hour)),
	)

	res, err := r.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Snapshot.Generation)
	assert.Equal(t, 39, engine.Current().TotalDocs())
	assert.Equal(t, segment.FileName(engine.Current()), res.File)
	assert.FileExists(t, filepath.Join(dir, res.File))

	require.Len(t, builds.entries, 1)
	assert.Equal(t, engine.Current().Fingerprint(), builds.entries[0].Fingerprint)
	assert.Equal(t, "file:"+filepath.Join("..", "..", "corpus", "testdata", "search_index.js"), builds.entries[0].Source)

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].Value.(indexer.IndexCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, res.File, event.Snapshot)
	assert.Equal(t, 39, event.Documents)

	stats := local.Stats()
	assert.Equal(t, int64(1), stats.Builds)
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, uint64(1), stats.LastBuild.Generation)
	assert.Equal(t, int64(1), r.Reloads())
}

func TestReload_SourceFailureKeepsIndex(t *testing.T) {
	engine := indexer.NewEngine(indexer.BuildOptions{})
	ok := &staticSource{records: []corpus.Record{{Location: "a/", Page: "A", Title: "Alpha", Category: "page", Text: "alpha text"}}}
	_, err := New(engine, ok).Reload(context.Background())
	require.NoError(t, err)
	before := engine.Current()

	local := analytics.NewAggregator()
	broken := New(engine, &staticSource{err: errors.New("disk gone")},
		WithCollector(analytics.NewCollector(nil, local, 0, time.Hour)))
	_, err = broken.Reload(context.Background())

	assert.ErrorContains(t, err, "disk gone")
	assert.Same(t, before, engine.Current())
	assert.Equal(t, int64(1), local.Stats().FailedBuilds)
}

func TestReload_StrictBuildFailureKeepsIndex(t *testing.T) {
	engine := indexer.NewEngine(indexer.BuildOptions{Mode: corpus.ModeStrict})
	bad := &staticSource{records: []corpus.Record{{Location: "x", Title: "X", Category: "widget"}}}

	_, err := New(engine, bad).Reload(context.Background())

	assert.Error(t, err)
	assert.Equal(t, uint64(0), engine.Generation())
}

func TestReload_BuildLogFailureStillPublishes(t *testing.T) {
	engine := indexer.NewEngine(indexer.BuildOptions{})
	r := New(engine, payloadSource(), WithBuildLog(&memoryBuildLog{err: errors.New("db down")}))

	res, err := r.Reload(context.Background())

	assert.ErrorContains(t, err, "db down")
	require.NotNil(t, res)
	assert.Equal(t, uint64(1), engine.Generation())
	assert.Empty(t, res.File)
}

func TestReload_NoAnnouncementWithoutSnapshot(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(indexer.NewEngine(indexer.BuildOptions{}), payloadSource(), WithPublisher(pub))

	_, err := r.Reload(context.Background())

	require.NoError(t, err)
	assert.Empty(t, pub.events)
}

type flakySource struct {
	failures int
	calls    int
	records  []corpus.Record
	err      error
}

func (s *flakySource) Records(ctx context.Context) ([]corpus.Record, error) {
	s.calls++
	if s.calls <= s.failures {
		if s.err != nil {
			return nil, s.err
		}
		return nil, errors.New("connection refused")
	}
	return s.records, nil
}

func (s *flakySource) String() string { return "flaky" }

func TestReload_RetriesFlakySource(t *testing.T) {
	src := &flakySource{
		failures: 2,
		records:  []corpus.Record{{Location: "a/", Page: "A", Title: "Alpha", Category: "page", Text: "alpha text"}},
	}
	r := New(indexer.NewEngine(indexer.BuildOptions{}), src, WithRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, time.Second))

	res, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 1, res.Snapshot.Index.TotalDocs())
}

func TestReload_WithoutRetryFetchesOnce(t *testing.T) {
	src := &flakySource{failures: 1}
	_, err := New(indexer.NewEngine(indexer.BuildOptions{}), src).Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestReload_DoesNotRetryMalformedPayload(t *testing.T) {
	src := &flakySource{failures: 5, err: fmt.Errorf("%w: payload has no docs key", apperrors.ErrInvalidInput)}
	r := New(indexer.NewEngine(indexer.BuildOptions{}), src, WithRetry(resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, time.Second))

	_, err := r.Reload(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 1, src.calls)
}

func TestReload_TracesEachPhase(t *testing.T) {
	r := New(indexer.NewEngine(indexer.BuildOptions{}), payloadSource(),
		WithSnapshots(segment.NewWriter(t.TempDir())),
		WithBuildLog(&memoryBuildLog{}),
		WithPublisher(&recordingPublisher{}),
	)

	res, err := r.Reload(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Trace)

	var phases []string
	for _, span := range res.Trace.Children() {
		phases = append(phases, span.Name)
		assert.NoError(t, span.Err())
	}
	assert.Equal(t, []string{"fetch", "build", "snapshot", "buildlog", "announce"}, phases)
	assert.Equal(t, "reload-1", res.Trace.TraceID)
}

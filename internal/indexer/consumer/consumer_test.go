package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/reloader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func records() []corpus.Record {
	return []corpus.Record{
		{Location: "sim/#Rollout", Page: "Simulators", Title: "Rollout Simulator", Category: "type", Text: "A fast simulator."},
		{Location: "hist/", Page: "History", Title: "History", Category: "page", Text: "Records the history."},
	}
}

type fakeReloader struct {
	calls int
	res   *reloader.Result
	err   error
}

func (f *fakeReloader) Reload(ctx context.Context) (*reloader.Result, error) {
	f.calls++
	return f.res, f.err
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleCorpusUpdate(t *testing.T) {
	published := &reloader.Result{Snapshot: &indexer.Snapshot{Generation: 3}}
	tests := []struct {
		name      string
		value     []byte
		reloader  *fakeReloader
		wantErr   bool
		wantCalls int
	}{
		{"rebuilds", []byte(`{"reason":"docs regenerated"}`), &fakeReloader{res: published}, false, 1},
		{"undecodable is dropped", []byte(`nope`), &fakeReloader{res: published}, false, 0},
		{"build failure is retried", []byte(`{}`), &fakeReloader{err: errors.New("strict failure")}, true, 1},
		{"persist failure is logged", []byte(`{}`), &fakeReloader{res: published, err: errors.New("db down")}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HandleCorpusUpdate(tt.reloader)(context.Background(), nil, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, tt.reloader.calls)
		})
	}
}

func writeSnapshot(t *testing.T, dir string) (string, string) {
	t.Helper()
	idx, _, err := indexer.Build(context.Background(), records(), indexer.BuildOptions{})
	require.NoError(t, err)
	name, err := segment.NewWriter(dir).Write(idx)
	require.NoError(t, err)
	return name, idx.Fingerprint()
}

func TestHandleIndexComplete_LoadsAnnouncedSnapshot(t *testing.T) {
	dir := t.TempDir()
	name, fp := writeSnapshot(t, dir)
	engine := indexer.NewEngine(indexer.BuildOptions{})
	var hooked *indexer.Snapshot
	handle := HandleIndexComplete(engine, dir, func(ctx context.Context, snap *indexer.Snapshot) { hooked = snap })

	event := indexer.IndexCompleteEvent{Generation: 7, Fingerprint: fp, Snapshot: name}
	require.NoError(t, handle(context.Background(), nil, mustJSON(t, event)))

	assert.Equal(t, fp, engine.Current().Fingerprint())
	assert.Equal(t, uint64(1), engine.Generation())
	require.NotNil(t, hooked)
	assert.Equal(t, uint64(1), hooked.Generation)

	require.NoError(t, handle(context.Background(), nil, mustJSON(t, event)))
	assert.Equal(t, uint64(1), engine.Generation())
}

func TestHandleIndexComplete_BadInput(t *testing.T) {
	dir := t.TempDir()
	engine := indexer.NewEngine(indexer.BuildOptions{})
	handle := HandleIndexComplete(engine, dir, nil)

	assert.NoError(t, handle(context.Background(), nil, []byte(`{`)))
	assert.NoError(t, handle(context.Background(), nil, []byte(`{"fingerprint":"x"}`)))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "idx_bad.spdx"), []byte("garbage"), 0o644))
	assert.NoError(t, handle(context.Background(), nil, []byte(`{"fingerprint":"x","snapshot":"idx_bad.spdx"}`)))

	assert.Error(t, handle(context.Background(), nil, []byte(`{"fingerprint":"x","snapshot":"idx_missing.spdx"}`)))
	assert.Equal(t, uint64(0), engine.Generation())
}

func TestLoadLatest(t *testing.T) {
	dir := t.TempDir()
	engine := indexer.NewEngine(indexer.BuildOptions{})

	_, err := LoadLatest(engine, dir)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, fp := writeSnapshot(t, dir)
	snap, err := LoadLatest(engine, dir)
	require.NoError(t, err)
	assert.Equal(t, fp, snap.Index.Fingerprint())
	assert.Equal(t, 2, engine.Current().TotalDocs())
}

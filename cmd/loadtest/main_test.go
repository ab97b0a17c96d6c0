package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("simulator\n\n  sim* \n"), 0o644))

	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"simulator", "sim*"}, queries)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}

func TestRun_CountsCacheHitsAndFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(handler.CacheHeader, "hit")
		w.Write([]byte(`{"query":"x","total_hits":2,"fallback":true,"generation":1,"results":[]}`))
	}))
	defer srv.Close()

	s := run(config{
		baseURL:     srv.URL,
		concurrency: 2,
		duration:    50 * time.Millisecond,
		limit:       5,
		queries:     []string{"a b"},
	})

	require.Positive(t, s.success.Load())
	assert.Equal(t, s.success.Load(), s.cacheHits.Load())
	assert.Equal(t, s.success.Load(), s.fallbacks.Load())
	assert.Zero(t, s.zeroHits.Load())
}

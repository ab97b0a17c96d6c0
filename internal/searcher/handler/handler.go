// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// CacheHeader reports whether a search was answered from the cache: hit,
// miss or disabled.
const CacheHeader = "X-Cache"

// SearchExecutor is satisfied by *executor.Executor.
type SearchExecutor interface {
	Snapshot() *indexer.Snapshot
	ExecuteSnapshot(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

type Handler struct {
	executor     SearchExecutor
	cache        cache.ResultCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns a Handler. queryCache, collector and m may be nil.
func New(exec SearchExecutor, queryCache cache.ResultCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Paths lists the routes Register mounts.
var Paths = []string{"/api/v1/search", "/api/v1/index/stats", "/api/v1/cache/stats", "/api/v1/cache/invalidate"}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}

	query := r.URL.Query().Get("q")
	plan := parser.Parse(query)
	snap := h.executor.Snapshot()
	if plan.Empty() {
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:      query,
			Generation: snap.Generation,
			Results:    []executor.Result{},
		})
		return
	}

	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.ExecuteSnapshot(ctx, snap, plan, limit)
	}
	var (
		result   *executor.SearchResult
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Index.Fingerprint(), plan.Normalized(), limit, compute)
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.SearchQueriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		}
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	// Cached results are shared; answer with a copy carrying this request's
	// query and generation.
	resp := *result
	resp.Query = query
	resp.Generation = snap.Generation

	latency := time.Since(start)
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	} else if h.cache == nil {
		cacheStatus = "disabled"
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	}
	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"fallback", resp.Fallback,
		"cache_hit", cacheHit,
		"latency_us", latency.Microseconds(),
	)
	if h.collector != nil {
		h.collector.TrackSearch(analytics.SearchEvent{
			Query:      query,
			Normalized: plan.Normalized(),
			Clauses:    len(plan.Clauses),
			TotalHits:  resp.TotalHits,
			Returned:   len(resp.Results),
			Fallback:   resp.Fallback,
			LatencyUs:  latency.Microseconds(),
			CacheHit:   cacheHit,
			Generation: snap.Generation,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	w.Header().Set(CacheHeader, cacheStatus)
	h.writeJSON(w, http.StatusOK, &resp)
}

// IndexStats describes the index currently being served.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap := h.executor.Snapshot()
	idx := snap.Index
	body := map[string]any{
		"documents":   idx.TotalDocs(),
		"terms":       idx.NumTerms(),
		"postings":    idx.NumPostings(),
		"generation":  snap.Generation,
		"fingerprint": idx.Fingerprint(),
		"empty":       idx.Empty(),
	}
	if !snap.PublishedAt.IsZero() {
		body["published_at"] = snap.PublishedAt.UTC().Format(time.RFC3339)
	}
	if snap.Report != nil {
		body["report"] = snap.Report
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops cached results for every index except the one being
// served. ?all=true drops everything.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	keep := h.executor.Snapshot().Index.Fingerprint()
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		keep = ""
	}
	if err := h.cache.Invalidate(r.Context(), keep); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError answers with the status err maps to. Only an AppError's
// message reaches the client; anything else is reported by status text.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := strings.ToLower(http.StatusText(status))
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

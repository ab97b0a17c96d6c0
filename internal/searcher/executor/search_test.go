package executor

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

func scenarioIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, _, err := indexer.Build(context.Background(), []corpus.Record{
		{Location: "a#1", Page: "A", Title: "Rollout Simulator", Category: "type", Text: "A fast simulator that returns the reward."},
		{Location: "b#1", Page: "B", Title: "History Recorder", Category: "type", Text: "Records the history for later examination."},
	}, indexer.BuildOptions{Mode: corpus.ModeStrict})
	require.NoError(t, err)
	return idx
}

func payloadIndex(t *testing.T) *index.Index {
	t.Helper()
	f, err := os.Open("../../corpus/testdata/search_index.js")
	require.NoError(t, err)
	defer f.Close()
	records, err := corpus.ParseDocumenter(f)
	require.NoError(t, err)
	idx, _, err := indexer.Build(context.Background(), records, indexer.BuildOptions{})
	require.NoError(t, err)
	return idx
}

func locations(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Location
	}
	return out
}

func TestSearch_Scenarios(t *testing.T) {
	idx := scenarioIndex(t)

	tests := []struct {
		query  string
		expect []string
	}{
		{"simulator", []string{"a#1"}},
		{"history", []string{"b#1"}},
		{"reward simulator", []string{"a#1"}},
		{"nonexistentword", []string{}},
		{`"fast simulator"`, []string{"a#1"}},
		{`"simulator fast"`, []string{}},
		{"sim*", []string{"a#1"}},
		{"rec*", []string{"b#1"}},
		{"type", []string{"a#1", "b#1"}},
		{"", []string{}},
		{`"`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expect, locations(Search(idx, tt.query, 0)))
		})
	}
}

func TestSearch_MatchedTermsAndScore(t *testing.T) {
	idx := scenarioIndex(t)
	ln3 := math.Log(3)

	res := Search(idx, "simulator", 10)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"simulator"}, res[0].MatchedTerms)
	assert.InDelta(t, 6*ln3, res[0].Score, 1e-9)
	assert.Equal(t, "A", res[0].Page)
	assert.Equal(t, "Rollout Simulator", res[0].Title)
	assert.Equal(t, corpus.CategoryType, res[0].Category)
	assert.Equal(t, "text", res[0].Snippet.Field)

	res = Search(idx, "history", 10)
	require.Len(t, res, 1)
	assert.InDelta(t, 6*ln3, res[0].Score, 1e-9, "title and text both count")

	res = Search(idx, `"fast simulator"`, 10)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.5*(ln3+6*ln3), res[0].Score, 1e-9)
	assert.Equal(t, []string{"fast", "simulator"}, res[0].MatchedTerms)

	res = Search(idx, "rec*", 10)
	require.Len(t, res, 1)
	assert.Equal(t, []string{"recorder", "records"}, res[0].MatchedTerms)
}

func TestRun_FallsBackToOr(t *testing.T) {
	idx := scenarioIndex(t)

	out := Run(idx, parser.Parse("simulator history"), 0, 20)
	assert.True(t, out.Fallback)
	assert.Equal(t, 2, out.TotalHits)
	assert.Equal(t, []string{"a#1", "b#1"}, locations(out.Results))
	assert.Equal(t, []string{"simulator"}, out.Results[0].MatchedTerms)
	assert.Equal(t, []string{"history"}, out.Results[1].MatchedTerms)

	single := Run(idx, parser.Parse("simulator"), 0, 20)
	assert.False(t, single.Fallback)
	assert.Equal(t, single.Results[0].Score, out.Results[0].Score,
		"a fallback hit on one term scores the same as a direct hit on that term")

	none := Run(idx, parser.Parse("nonexistentword"), 0, 20)
	assert.False(t, none.Fallback)
	assert.Equal(t, 0, none.TotalHits)
	assert.NotNil(t, none.Results)
}

func TestRun_OrPrefersDocsMatchingMoreClauses(t *testing.T) {
	idx, _, err := indexer.Build(context.Background(), []corpus.Record{
		{Location: "x", Title: "Alpha", Category: "section", Text: "alpha beta"},
		{Location: "y", Title: "Gamma", Category: "section", Text: "alpha"},
		{Location: "z", Title: "Delta", Category: "section", Text: "beta"},
	}, indexer.BuildOptions{})
	require.NoError(t, err)

	out := Run(idx, parser.Parse("alpha beta omega"), 0, 20)
	assert.True(t, out.Fallback)
	assert.Equal(t, "x", out.Results[0].Location)
}

func TestSearch_LimitTruncates(t *testing.T) {
	idx := scenarioIndex(t)
	assert.Equal(t, []string{"a#1"}, locations(Search(idx, "type", 1)))

	out := Run(idx, parser.Parse("type"), 1, 20)
	assert.Equal(t, 2, out.TotalHits)
	assert.Len(t, out.Results, 1)
}

func TestSearch_EmptyIndex(t *testing.T) {
	assert.Empty(t, Search(index.Empty(), "anything", 10))
}

func TestSearch_Deterministic(t *testing.T) {
	idx := payloadIndex(t)
	for _, q := range []string{"simhistory", "history recorder", "step*", `"history recorder"`, "function", "policy rollout"} {
		first := Search(idx, q, 0)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Search(idx, q, 0), q)
		}
	}
}

func TestSearch_UniqueTitleTermRanksFirst(t *testing.T) {
	idx := payloadIndex(t)

	checked := 0
	for _, doc := range idx.Documents() {
		for _, term := range tokenizer.Terms(doc.Title) {
			pl := idx.Postings(term)
			ids := pl.DocIDs()
			if len(ids) != 1 || ids[0] != doc.ID || len(pl) != 1 || pl[0].Field != index.FieldTitle {
				continue
			}
			res := Search(idx, term, 1)
			require.NotEmpty(t, res, term)
			assert.Equal(t, doc.Location, res[0].Location, term)
			checked++
		}
	}
	assert.Positive(t, checked)
}

func TestSearch_PhraseIsSubsetOfAnd(t *testing.T) {
	idx := payloadIndex(t)

	checked := 0
	for _, doc := range idx.Documents() {
		terms := tokenizer.Terms(doc.Text)
		if len(terms) < 2 {
			continue
		}
		phrase := Search(idx, `"`+terms[0]+" "+terms[1]+`"`, 0)
		and := Run(idx, parser.Parse(terms[0]+" "+terms[1]), 0, 20)
		require.False(t, and.Fallback)

		allowed := make(map[string]bool)
		for _, r := range and.Results {
			allowed[r.Location] = true
		}
		assert.Contains(t, locations(phrase), doc.Location)
		for _, r := range phrase {
			assert.True(t, allowed[r.Location], "%q returned %s", terms[:2], r.Location)
		}
		checked++
	}
	assert.Positive(t, checked)
}

func TestSearch_CategoryTermSurfacesSymbols(t *testing.T) {
	idx := payloadIndex(t)
	res := Search(idx, "function", 0)
	require.NotEmpty(t, res)

	functions := 0
	for _, r := range res {
		if r.Category == corpus.CategoryFunction {
			functions++
		}
	}
	assert.Equal(t, 5, functions)
}

func TestSearch_PhraseBonusCoversEveryField(t *testing.T) {
	idx := scenarioIndex(t)
	doc, ok := idx.Doc(0)
	require.True(t, ok)
	require.Equal(t, "a#1", doc.Location)

	tests := []struct {
		query string
		want  float64
	}{
		{`"fast simulator"`, ranker.PhraseBonus * (ranker.TermScore(idx, "fast", 0) + ranker.TermScore(idx, "simulator", 0))},
		{"fast simulator", ranker.TermScore(idx, "fast", 0) + ranker.TermScore(idx, "simulator", 0)},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := Search(idx, tt.query, 10)
			require.Len(t, res, 1)
			assert.InDelta(t, tt.want, res[0].Score, 1e-9)
		})
	}
}

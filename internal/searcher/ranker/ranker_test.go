package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

func scenarioIndex(t *testing.T) *index.Index {
	t.Helper()
	docs, _, err := corpus.Load([]corpus.Record{
		{Location: "a#1", Page: "A", Title: "Rollout Simulator", Category: "type", Text: "A fast simulator that returns the reward."},
		{Location: "b#1", Page: "B", Title: "History Recorder", Category: "type", Text: "Records the history for later examination."},
	}, corpus.ModeStrict)
	require.NoError(t, err)
	parts := make([]index.DocTerms, len(docs))
	for i, d := range docs {
		parts[i] = index.Accumulate(d)
	}
	idx, err := index.New(docs, index.Merge(parts))
	require.NoError(t, err)
	return idx
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, math.Log(3), IDF(2, 1), 1e-12)
	assert.InDelta(t, math.Log(2), IDF(2, 2), 1e-12)
	assert.Equal(t, 0.0, IDF(2, 0))
}

func TestFieldWeight(t *testing.T) {
	assert.Equal(t, 5.0, FieldWeight(index.FieldTitle))
	assert.Equal(t, 2.0, FieldWeight(index.FieldCategory))
	assert.Equal(t, 1.0, FieldWeight(index.FieldText))
}

func TestTermScore(t *testing.T) {
	idx := scenarioIndex(t)

	// "simulator": title tf=1 and text tf=1 in a#1, df=1
	assert.InDelta(t, (5.0+1.0)*math.Log(3), TermScore(idx, "simulator", 0), 1e-12)
	assert.Equal(t, 0.0, TermScore(idx, "simulator", 1))

	// "type" appears in the category of both docs
	assert.InDelta(t, 2.0*math.Log(2), TermScore(idx, "type", 1), 1e-12)

	assert.Equal(t, 0.0, TermScore(idx, "missing", 0))
}

func TestTopK(t *testing.T) {
	docs := []ScoredDoc{
		{DocID: 4, Score: 1.0},
		{DocID: 1, Score: 3.0},
		{DocID: 3, Score: 2.0},
		{DocID: 0, Score: 2.0},
		{DocID: 2, Score: 0.5},
	}

	all := TopK(docs, 0)
	ids := make([]int, len(all))
	for i, d := range all {
		ids[i] = d.DocID
	}
	assert.Equal(t, []int{1, 0, 3, 4, 2}, ids)

	top := TopK(docs, 2)
	require.Len(t, top, 2)
	assert.Equal(t, 1, top[0].DocID)
	assert.Equal(t, 0, top[1].DocID, "ties go to the lower doc id")

	assert.Equal(t, 4, docs[0].DocID, "input is not reordered")
	assert.Empty(t, TopK(nil, 5))
}

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
)

func testDocs() []corpus.Document {
	return []corpus.Document{
		{ID: 0, Location: "a#1", Page: "A", Title: "Rollout Simulator", Category: corpus.CategorySection, Text: "A fast simulator for rollouts."},
		{ID: 1, Location: "b#1", Page: "B", Title: "History Recorder", Category: corpus.CategorySection, Text: "Records the history of a simulator run."},
		{ID: 2, Location: "c", Page: "C", Category: corpus.CategoryPage, AnchorOnly: true},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	docs := testDocs()
	parts := make([]DocTerms, len(docs))
	for i, d := range docs {
		parts[i] = Accumulate(d)
	}
	idx, err := New(docs, Merge(parts))
	require.NoError(t, err)
	return idx
}

func TestAccumulate_GroupsByField(t *testing.T) {
	dt := Accumulate(testDocs()[0])

	var sim *TermEntry
	for i := range dt.Entries {
		if dt.Entries[i].Term == "simulator" {
			sim = &dt.Entries[i]
		}
	}
	require.NotNil(t, sim)
	require.Len(t, sim.Postings, 2)
	assert.Equal(t, Posting{DocID: 0, Field: FieldTitle, Frequency: 1, Positions: []int{1}}, sim.Postings[0])
	assert.Equal(t, Posting{DocID: 0, Field: FieldText, Frequency: 1, Positions: []int{1}}, sim.Postings[1])
}

func TestAccumulate_AnchorOnlyHasNoEntries(t *testing.T) {
	assert.Empty(t, Accumulate(testDocs()[2]).Entries)
}

func TestIndex_Lookups(t *testing.T) {
	idx := buildTestIndex(t)

	assert.Equal(t, 3, idx.TotalDocs())
	assert.Equal(t, 2, idx.DocFrequency("simulator"))
	assert.Equal(t, 1, idx.DocFrequency("history"))
	assert.Equal(t, 0, idx.DocFrequency("missing"))
	assert.Nil(t, idx.Postings("missing"))
	assert.Equal(t, []int{0, 1}, idx.Postings("simulator").DocIDs())
	assert.Equal(t, 2, idx.DocFrequency("section"))

	assert.Equal(t, 2, idx.FieldLength(0, FieldTitle))
	assert.Equal(t, 1, idx.FieldLength(0, FieldCategory))
	assert.Equal(t, 4, idx.FieldLength(0, FieldText))
	assert.Equal(t, 0, idx.FieldLength(2, FieldText))
	assert.Equal(t, 0, idx.FieldLength(99, FieldText))

	doc, ok := idx.Doc(1)
	require.True(t, ok)
	assert.Equal(t, "b#1", doc.Location)
	_, ok = idx.Doc(3)
	assert.False(t, ok)
}

func TestIndex_TermsSortedAndPrefix(t *testing.T) {
	idx := buildTestIndex(t)

	terms := idx.Terms()
	assert.IsNonDecreasing(t, terms)
	assert.Equal(t, []string{"recorder", "records"}, idx.TermsWithPrefix("rec"))
	assert.Equal(t, []string{"recorder", "records", "rollout", "rollouts", "run"}, idx.TermsWithPrefix("r"))
	assert.Empty(t, idx.TermsWithPrefix("zzz"))
}

func TestIndex_PostingsSortedByDocThenField(t *testing.T) {
	idx := buildTestIndex(t)
	for _, e := range idx.Entries() {
		for i := 1; i < len(e.Postings); i++ {
			prev, cur := e.Postings[i-1], e.Postings[i]
			assert.True(t, prev.DocID < cur.DocID || (prev.DocID == cur.DocID && prev.Field < cur.Field), e.Term)
		}
	}
}

func TestIndex_FingerprintStable(t *testing.T) {
	a := buildTestIndex(t)
	b := buildTestIndex(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	docs := testDocs()
	docs[1].Text = "Something else entirely."
	parts := make([]DocTerms, len(docs))
	for i, d := range docs {
		parts[i] = Accumulate(d)
	}
	c, err := New(docs, Merge(parts))
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestNew_RejectsInconsistentInput(t *testing.T) {
	docs := testDocs()

	_, err := New(docs, []TermEntry{{Term: "x", Postings: PostingList{{DocID: 7, Field: FieldText, Frequency: 1}}}})
	assert.Error(t, err)

	_, err = New(docs, []TermEntry{{Term: "b"}, {Term: "a"}})
	assert.Error(t, err)

	docs[1].ID = 5
	_, err = New(docs, nil)
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	idx := Empty()
	assert.Equal(t, 0, idx.TotalDocs())
	assert.Equal(t, 0, idx.NumTerms())
	assert.NotEmpty(t, idx.Fingerprint())
	assert.True(t, idx.Empty())
}

func TestIndex_EmptyFalseOnceDocumentsExist(t *testing.T) {
	idx, err := New([]corpus.Document{{ID: 0, Location: "a/", AnchorOnly: true}}, nil)
	require.NoError(t, err)
	assert.False(t, idx.Empty())
}

func TestFieldContent(t *testing.T) {
	doc := corpus.Document{Title: "Rollout Simulator", Category: corpus.CategoryType, Text: "A fast simulator."}
	assert.Equal(t, "Rollout Simulator", fieldContent(doc, FieldTitle))
	assert.Equal(t, "type", fieldContent(doc, FieldCategory))
	assert.Equal(t, "A fast simulator.", fieldContent(doc, FieldText))
}

func TestPostingList_ForDoc(t *testing.T) {
	pl := PostingList{
		{DocID: 0, Field: FieldTitle},
		{DocID: 2, Field: FieldTitle},
		{DocID: 2, Field: FieldText},
		{DocID: 5, Field: FieldText},
	}
	assert.Len(t, pl.ForDoc(2), 2)
	assert.Len(t, pl.ForDoc(5), 1)
	assert.Empty(t, pl.ForDoc(3))
	assert.Equal(t, []int{0, 2, 5}, pl.DocIDs())
}

// Package ranker scores documents with field-weighted TF-IDF and orders
// them deterministically.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// Field weights and the phrase bonus. Scores are exactly reproducible from
// these and the index statistics.
const (
	TitleWeight    = 5.0
	CategoryWeight = 2.0
	TextWeight     = 1.0
	PhraseBonus    = 1.5
)

type ScoredDoc struct {
	DocID        int      `json:"doc_id"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms"`
}

func FieldWeight(f index.Field) float64 {
	switch f {
	case index.FieldTitle:
		return TitleWeight
	case index.FieldCategory:
		return CategoryWeight
	case index.FieldText:
		return TextWeight
	default:
		return 0
	}
}

// IDF is ln(1 + N/df). Terms absent from the index weigh nothing.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 {
		return 0
	}
	return math.Log(1 + float64(totalDocs)/float64(docFreq))
}

// TermScore sums tf × fieldWeight × idf over every field in which term
// occurs in docID. It returns 0 when the term does not occur in the doc.
func TermScore(idx *index.Index, term string, docID int) float64 {
	postings := idx.Postings(term).ForDoc(docID)
	if len(postings) == 0 {
		return 0
	}
	idf := IDF(idx.TotalDocs(), idx.DocFrequency(term))
	score := 0.0
	for _, p := range postings {
		score += float64(p.Frequency) * FieldWeight(p.Field) * idf
	}
	return score
}

// Less orders by score descending, then DocID ascending.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

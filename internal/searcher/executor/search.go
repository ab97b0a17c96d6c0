package executor

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/snippet"
)

// Result is one ranked hit as returned to callers.
type Result struct {
	Location     string          `json:"location"`
	Page         string          `json:"page"`
	Title        string          `json:"title"`
	Category     corpus.Category `json:"category"`
	Score        float64         `json:"score"`
	MatchedTerms []string        `json:"matched_terms"`
	Snippet      snippet.Snippet `json:"snippet"`
}

type SearchResult struct {
	Query      string   `json:"query"`
	TotalHits  int      `json:"total_hits"`
	Fallback   bool     `json:"fallback"`
	Generation uint64   `json:"generation"`
	Results    []Result `json:"results"`
}

// Search runs query against idx and returns at most limit results
// (limit <= 0 means all), with default-width snippets.
func Search(idx *index.Index, query string, limit int) []Result {
	return Run(idx, parser.Parse(query), limit, snippet.DefaultWidth).Results
}

// Run evaluates plan against idx. Every clause must match for a document to
// qualify; if no document qualifies that way, documents matching any clause
// qualify instead and Fallback is set. Scores use only the clauses a
// document matched.
func Run(idx *index.Index, plan *parser.QueryPlan, limit, snippetWidth int) *SearchResult {
	out := &SearchResult{
		Query:   plan.RawQuery,
		Results: []Result{},
	}
	if plan.Empty() {
		return out
	}

	matches := make([]clauseMatch, len(plan.Clauses))
	for i, c := range plan.Clauses {
		matches[i] = matchClause(idx, c)
	}

	candidates := intersect(matches)
	if len(candidates) == 0 {
		candidates = union(matches)
		out.Fallback = len(candidates) > 0
	}
	out.TotalHits = len(candidates)

	scored := make([]ranker.ScoredDoc, 0, len(candidates))
	for _, docID := range candidates {
		scored = append(scored, scoreDoc(idx, plan.Clauses, matches, docID))
	}

	for _, sd := range ranker.TopK(scored, limit) {
		doc, _ := idx.Doc(sd.DocID)
		out.Results = append(out.Results, Result{
			Location:     doc.Location,
			Page:         doc.Page,
			Title:        doc.Title,
			Category:     doc.Category,
			Score:        sd.Score,
			MatchedTerms: sd.MatchedTerms,
			Snippet:      snippet.Extract(doc, sd.MatchedTerms, snippetWidth),
		})
	}
	return out
}

// clauseMatch is the set of documents a clause matches and, per document,
// the index terms that made it match.
type clauseMatch struct {
	docs  []int
	terms map[int][]string
}

func matchClause(idx *index.Index, c parser.Clause) clauseMatch {
	m := clauseMatch{terms: make(map[int][]string)}
	switch c.Kind {
	case parser.ClauseTerm:
		for _, id := range idx.Postings(c.Terms[0]).DocIDs() {
			m.terms[id] = c.Terms
		}
	case parser.ClausePrefix:
		for _, term := range idx.TermsWithPrefix(c.Terms[0]) {
			for _, id := range idx.Postings(term).DocIDs() {
				m.terms[id] = append(m.terms[id], term)
			}
		}
	case parser.ClausePhrase:
		lists := make([]clauseMatch, len(c.Terms))
		for i, term := range c.Terms {
			lists[i] = clauseMatch{docs: idx.Postings(term).DocIDs()}
		}
		for _, id := range intersect(lists) {
			if phraseIn(idx, c.Terms, id) {
				m.terms[id] = uniqueSorted(c.Terms)
			}
		}
	}
	m.docs = make([]int, 0, len(m.terms))
	for id := range m.terms {
		m.docs = append(m.docs, id)
	}
	sort.Ints(m.docs)
	return m
}

// phraseIn reports whether terms occur at consecutive positions within one
// field of docID.
func phraseIn(idx *index.Index, terms []string, docID int) bool {
	for _, field := range index.Fields {
		positions := make([][]int, len(terms))
		complete := true
		for i, term := range terms {
			positions[i] = fieldPositions(idx.Postings(term).ForDoc(docID), field)
			if positions[i] == nil {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, p := range positions[0] {
			ok := true
			for i := 1; i < len(terms); i++ {
				if !containsSorted(positions[i], p+i) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
	}
	return false
}

func fieldPositions(postings index.PostingList, field index.Field) []int {
	for _, p := range postings {
		if p.Field == field {
			return p.Positions
		}
	}
	return nil
}

func containsSorted(xs []int, x int) bool {
	i := sort.SearchInts(xs, x)
	return i < len(xs) && xs[i] == x
}

func scoreDoc(idx *index.Index, clauses []parser.Clause, matches []clauseMatch, docID int) ranker.ScoredDoc {
	sd := ranker.ScoredDoc{DocID: docID}
	matched := make(map[string]struct{})
	for i, c := range clauses {
		terms, ok := matches[i].terms[docID]
		if !ok {
			continue
		}
		contribution := 0.0
		for _, term := range terms {
			contribution += ranker.TermScore(idx, term, docID)
			matched[term] = struct{}{}
		}
		if c.Kind == parser.ClausePhrase {
			contribution *= ranker.PhraseBonus
		}
		sd.Score += contribution
	}
	sd.MatchedTerms = make([]string, 0, len(matched))
	for term := range matched {
		sd.MatchedTerms = append(sd.MatchedTerms, term)
	}
	sort.Strings(sd.MatchedTerms)
	return sd
}

// intersect returns the doc IDs present in every match, ascending.
func intersect(matches []clauseMatch) []int {
	if len(matches) == 0 {
		return nil
	}
	shortest := 0
	for i, m := range matches {
		if len(m.docs) < len(matches[shortest].docs) {
			shortest = i
		}
	}
	result := make([]int, 0, len(matches[shortest].docs))
	for _, id := range matches[shortest].docs {
		inAll := true
		for i, m := range matches {
			if i != shortest && !containsSorted(m.docs, id) {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, id)
		}
	}
	return result
}

// union returns the doc IDs present in any match, ascending.
func union(matches []clauseMatch) []int {
	seen := make(map[int]struct{})
	for _, m := range matches {
		for _, id := range m.docs {
			seen[id] = struct{}{}
		}
	}
	result := make([]int, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

func uniqueSorted(terms []string) []string {
	out := append([]string(nil), terms...)
	sort.Strings(out)
	n := 0
	for i, t := range out {
		if i == 0 || t != out[n-1] {
			out[n] = t
			n++
		}
	}
	return out[:n]
}

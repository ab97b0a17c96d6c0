package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// DocTerms is the partial index of a single document: its term entries,
// sorted by term, each holding only that document's postings.
type DocTerms struct {
	DocID   int
	Entries []TermEntry
}

// fieldContent returns the raw text a document contributes to a field.
func fieldContent(doc corpus.Document, f Field) string {
	switch f {
	case FieldTitle:
		return doc.Title
	case FieldCategory:
		return doc.Category.String()
	case FieldText:
		return doc.Text
	default:
		return ""
	}
}

// Accumulate tokenizes every field of doc and groups the tokens into
// postings. Anchor-only documents produce no entries. It touches no shared
// state, so documents can be accumulated in parallel.
func Accumulate(doc corpus.Document) DocTerms {
	out := DocTerms{DocID: doc.ID}
	if doc.AnchorOnly {
		return out
	}
	byTerm := make(map[string][]Posting)
	for _, field := range Fields {
		fieldPostings := make(map[string]*Posting)
		order := make([]string, 0)
		for _, tok := range tokenizer.Tokenize(fieldContent(doc, field)) {
			p, ok := fieldPostings[tok.Term]
			if !ok {
				p = &Posting{
					DocID:     doc.ID,
					Field:     field,
					Positions: make([]int, 0, 2),
				}
				fieldPostings[tok.Term] = p
				order = append(order, tok.Term)
			}
			p.Frequency++
			p.Positions = append(p.Positions, tok.Position)
		}
		for _, term := range order {
			byTerm[term] = append(byTerm[term], *fieldPostings[term])
		}
	}

	out.Entries = make([]TermEntry, 0, len(byTerm))
	for term, postings := range byTerm {
		out.Entries = append(out.Entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		return out.Entries[i].Term < out.Entries[j].Term
	})
	return out
}

// Merge concatenates per-document partials into term entries. parts must be
// ordered by ascending DocID; the result is then sorted by term with every
// posting list sorted by DocID, independent of how the parts were produced.
func Merge(parts []DocTerms) []TermEntry {
	lists := make(map[string]PostingList)
	for i := 1; i < len(parts); i++ {
		if parts[i].DocID <= parts[i-1].DocID {
			panic("index.Merge: parts not in ascending DocID order")
		}
	}
	for _, part := range parts {
		for _, entry := range part.Entries {
			lists[entry.Term] = append(lists[entry.Term], entry.Postings...)
		}
	}
	entries := make([]TermEntry, 0, len(lists))
	for term, postings := range lists {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Package snippet cuts a short, highlighted excerpt out of a document for
// display under a search result. Highlights are offsets, never markup.
package snippet

import (
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

// DefaultWidth is the snippet window, in tokens.
const DefaultWidth = 20

// Span marks one matched token. Token is its position within the source
// field; Start and End are byte offsets into Snippet.Text.
type Span struct {
	Token int `json:"token"`
	Start int `json:"start"`
	End   int `json:"end"`
}

type Snippet struct {
	Field      string `json:"field"`
	Text       string `json:"text"`
	Highlights []Span `json:"highlights"`
	// FirstToken and LastToken bound the window within the field
	// (LastToken exclusive). Both are zero for a whole-title fallback.
	FirstToken int `json:"first_token"`
	LastToken  int `json:"last_token"`
}

// Extract builds the snippet for doc given the index terms it matched. The
// text field is used when it contains a match, then the title. When neither
// does, the title is returned untouched with no highlights.
func Extract(doc corpus.Document, matched []string, width int) Snippet {
	if width <= 0 {
		width = DefaultWidth
	}
	want := make(map[string]struct{}, len(matched))
	for _, t := range matched {
		want[t] = struct{}{}
	}

	if s, ok := window("text", doc.Text, want, width); ok {
		return s
	}
	if s, ok := window("title", doc.Title, want, width); ok {
		return s
	}
	return Snippet{Field: "title", Text: doc.Title, Highlights: []Span{}}
}

func window(field, text string, want map[string]struct{}, width int) (Snippet, bool) {
	tokens := tokenizer.Tokenize(text)
	first := -1
	for i, tok := range tokens {
		if _, ok := want[tok.Term]; ok {
			first = i
			break
		}
	}
	if first < 0 {
		return Snippet{}, false
	}

	n := len(tokens)
	start := max(0, first-width/2)
	end := min(n, start+width)
	start = max(0, end-width)

	base := tokens[start].Start
	s := Snippet{
		Field:      field,
		Text:       text[base:tokens[end-1].End],
		Highlights: make([]Span, 0, 2),
		FirstToken: start,
		LastToken:  end,
	}
	for i := start; i < end; i++ {
		if _, ok := want[tokens[i].Term]; ok {
			s.Highlights = append(s.Highlights, Span{
				Token: i,
				Start: tokens[i].Start - base,
				End:   tokens[i].End - base,
			})
		}
	}
	return s, true
}

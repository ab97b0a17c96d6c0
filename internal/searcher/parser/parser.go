// Package parser turns a raw search string into a QueryPlan of term,
// prefix and phrase clauses. Parsing never fails: syntax it cannot make
// sense of is treated as a token boundary.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

type ClauseKind int

const (
	// ClauseTerm matches one exact term.
	ClauseTerm ClauseKind = iota
	// ClausePrefix matches every indexed term starting with Terms[0].
	ClausePrefix
	// ClausePhrase requires Terms to appear contiguously, in order, within
	// a single field.
	ClausePhrase
)

func (k ClauseKind) String() string {
	switch k {
	case ClausePrefix:
		return "prefix"
	case ClausePhrase:
		return "phrase"
	default:
		return "term"
	}
}

type Clause struct {
	Kind  ClauseKind
	Terms []string
}

// Key is a canonical form of the clause, unique per distinct clause.
func (c Clause) Key() string {
	switch c.Kind {
	case ClausePrefix:
		return c.Terms[0] + "*"
	case ClausePhrase:
		return `"` + strings.Join(c.Terms, " ") + `"`
	default:
		return c.Terms[0]
	}
}

type QueryPlan struct {
	Clauses  []Clause
	RawQuery string
}

// Empty reports whether the query has nothing to match.
func (p *QueryPlan) Empty() bool {
	return len(p.Clauses) == 0
}

// Normalized is the canonical query string: clause keys in parse order.
// Two queries with the same Normalized form always return the same results.
func (p *QueryPlan) Normalized() string {
	keys := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		keys[i] = c.Key()
	}
	return strings.Join(keys, " ")
}

// Parse splits query on whitespace, honouring double-quoted phrases. A quote
// without a partner is ignored. A bare word ending in '*' makes its last term
// a prefix. A phrase that normalises to a single term becomes a term clause,
// and repeated clauses are dropped.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Clauses:  make([]Clause, 0),
		RawQuery: query,
	}
	seen := make(map[string]struct{})
	add := func(c Clause) {
		key := c.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		plan.Clauses = append(plan.Clauses, c)
	}

	rest := query
	for rest != "" {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			addBare(rest, add)
			break
		}
		closing := strings.IndexByte(rest[open+1:], '"')
		if closing < 0 {
			addBare(rest[:open]+" "+rest[open+1:], add)
			break
		}
		addBare(rest[:open], add)
		addPhrase(rest[open+1:open+1+closing], add)
		rest = rest[open+closing+2:]
	}
	return plan
}

func addBare(text string, add func(Clause)) {
	for _, word := range strings.Fields(text) {
		prefix := strings.HasSuffix(word, "*")
		terms := tokenizer.Terms(strings.TrimRight(word, "*"))
		for i, term := range terms {
			kind := ClauseTerm
			if prefix && i == len(terms)-1 {
				kind = ClausePrefix
			}
			add(Clause{Kind: kind, Terms: []string{term}})
		}
	}
}

func addPhrase(text string, add func(Clause)) {
	terms := tokenizer.Terms(text)
	switch len(terms) {
	case 0:
	case 1:
		add(Clause{Kind: ClauseTerm, Terms: terms})
	default:
		add(Clause{Kind: ClausePhrase, Terms: terms})
	}
}

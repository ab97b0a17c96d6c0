// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, splits on runs of non-alphanumeric characters and
// drops tokens shorter than two characters. There is no stemming and no
// stop-word removal, so a field's tokens map one-to-one onto its words.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTermLength is the shortest token, in characters, that is kept.
const MinTermLength = 2

// Token represents a single normalised term, its position among the kept
// tokens of the field, and the byte span it came from in the original text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Tokenize breaks text into lower-cased Tokens. It is pure: identical input
// always yields identical output.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tok, ok := makeToken(text, start, i, pos); ok {
				tokens = append(tokens, tok)
				pos++
			}
			start = -1
		}
	}
	if start >= 0 {
		if tok, ok := makeToken(text, start, len(text), pos); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Terms returns only the normalised terms of text, in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

func makeToken(text string, start, end, pos int) (Token, bool) {
	word := text[start:end]
	if utf8.RuneCountInString(word) < MinTermLength {
		return Token{}, false
	}
	return Token{
		Term:     strings.ToLower(word),
		Position: pos,
		Start:    start,
		End:      end,
	}, true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

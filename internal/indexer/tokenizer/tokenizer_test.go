package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_SplitsAndLowercases(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{"words", "Rollout Simulator", []string{"rollout", "simulator"}},
		{"qualified name", "POMDPSimulators.eachstep", []string{"pomdpsimulators", "eachstep"}},
		{"code fence", "```julia\nsim(pomdp, policy)\n```", []string{"julia", "sim", "pomdp", "policy"}},
		{"drops single characters", "for (s, a, r, sp) in h", []string{"for", "sp", "in"}},
		{"digits kept", "run 10 sims in 2D", []string{"run", "10", "sims", "in", "2d"}},
		{"markup punctuation", "**bold** _x_ [link](url)", []string{"bold", "link", "url"}},
		{"empty", "", []string{}},
		{"only punctuation", "... --- !!!", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Terms(tt.input))
		})
	}
}

func TestTokenize_PositionsSkipDroppedTokens(t *testing.T) {
	tokens := Tokenize("A fast simulator")

	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "fast", Position: 0, Start: 2, End: 6}, tokens[0])
	assert.Equal(t, Token{Term: "simulator", Position: 1, Start: 7, End: 16}, tokens[1])
}

func TestTokenize_ByteOffsetsAddressOriginalText(t *testing.T) {
	text := "Über-Simulator: straße"
	for _, tok := range Tokenize(text) {
		assert.Equal(t, tok.Term, lower(text[tok.Start:tok.End]))
	}
}

func TestTokenize_CaseInsensitiveAndDeterministic(t *testing.T) {
	assert.Equal(t, Terms("historyrecorder"), Terms("HistoryRecorder"))

	text := "Records the history for later examination."
	first := Tokenize(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Tokenize(text))
	}
}

func lower(s string) string {
	return Terms(s)[0]
}

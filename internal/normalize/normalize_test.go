package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	n := New()

	tests := []struct {
		name            string
		in              string
		wantText        string
		wantCorrections []string
	}{
		{
			name:            "empty input",
			in:              "",
			wantText:        "",
			wantCorrections: []string{},
		},
		{
			name:            "already normalized",
			in:              "hello, world.",
			wantText:        "hello, world.",
			wantCorrections: []string{},
		},
		{
			name:            "all three steps",
			in:              "The Quick  Brown!",
			wantText:        "the quick brown",
			wantCorrections: []string{CorrectionLowercase, CorrectionWhitespace, CorrectionPunctuation},
		},
		{
			name:            "whitespace only",
			in:              "  spaced   out  ",
			wantText:        "spaced out",
			wantCorrections: []string{CorrectionWhitespace},
		},
		{
			name:            "tabs and newlines collapse",
			in:              "line one\n\tline two",
			wantText:        "line one line two",
			wantCorrections: []string{CorrectionWhitespace},
		},
		{
			name: "punctuation strip runs after whitespace collapse",
			// The ampersand is removed after collapsing, so the two
			// spaces around it survive into the result.
			in:              "a & b",
			wantText:        "a  b",
			wantCorrections: []string{CorrectionPunctuation},
		},
		{
			name:            "unicode letters survive",
			in:              "Résumé!",
			wantText:        "résumé",
			wantCorrections: []string{CorrectionLowercase, CorrectionPunctuation},
		},
		{
			name:            "digits and underscore survive",
			in:              "var_1 equals 42",
			wantText:        "var_1 equals 42",
			wantCorrections: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Preprocess(tt.in)

			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantCorrections, got.Corrections)
			assert.Empty(t, got.PreservedTerms)
		})
	}
}

func TestPreprocess_Idempotent(t *testing.T) {
	n := New()

	first := n.Preprocess("The Quick  Brown Fox! Jumps, over.")
	second := n.Preprocess(first.Text)

	assert.Equal(t, first.Text, second.Text)
	assert.Empty(t, second.Corrections, "a second pass must not change anything")
}

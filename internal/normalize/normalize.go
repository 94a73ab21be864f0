// Package normalize cleans raw answer text before classification and
// scoring. Normalization is loss-tolerant: it lowercases, collapses
// whitespace and strips punctuation other than periods and commas, while
// recording which steps actually changed the text.
package normalize

import (
	"regexp"
	"strings"

	"github.com/answerlab/go-grader/internal/domain"
)

// Correction labels recorded when the matching step changes the text.
// The labels are part of the wire contract and must stay stable.
const (
	CorrectionLowercase   = "Converted to lowercase"
	CorrectionWhitespace  = "Normalized whitespace"
	CorrectionPunctuation = "Removed special punctuation"
)

var (
	// whitespaceRE matches any run of whitespace, including Unicode
	// space separators.
	whitespaceRE = regexp.MustCompile(`[\s\p{Zs}]+`)

	// punctuationRE matches every character that is not a word character
	// (letter, digit, underscore), a space, a period or a comma.
	// Whitespace has already been collapsed to single spaces when this
	// pattern is applied.
	punctuationRE = regexp.MustCompile(`[^\p{L}\p{N}_ .,]`)
)

// Normalizer produces a NormalizedText from raw input. It is stateless
// and safe for concurrent use.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Preprocess normalizes text in four ordered steps: lowercase, collapse
// whitespace, strip special punctuation, trim. A step appends its
// correction label only when it changed the text; trimming is never
// recorded. Empty input yields an all-empty NormalizedText.
func (n *Normalizer) Preprocess(text string) domain.NormalizedText {
	if text == "" {
		return domain.NormalizedText{
			Corrections:    []string{},
			PreservedTerms: []string{},
		}
	}

	corrections := make([]string, 0, 3)
	normalized := text

	if lowered := strings.ToLower(normalized); lowered != normalized {
		corrections = append(corrections, CorrectionLowercase)
		normalized = lowered
	}

	if collapsed := whitespaceRE.ReplaceAllString(normalized, " "); collapsed != normalized {
		corrections = append(corrections, CorrectionWhitespace)
		normalized = collapsed
	}

	if stripped := punctuationRE.ReplaceAllString(normalized, ""); stripped != normalized {
		corrections = append(corrections, CorrectionPunctuation)
		normalized = stripped
	}

	normalized = strings.TrimSpace(normalized)

	return domain.NormalizedText{
		Text:           normalized,
		Corrections:    corrections,
		PreservedTerms: []string{},
	}
}

package domain

import "sort"

// NormalizedText is the output of the normalization stage for one raw
// text. It is created once per text per evaluation and never mutated.
type NormalizedText struct {
	// Text is the cleaned form: lowercased, whitespace collapsed,
	// punctuation reduced to periods and commas, trimmed.
	Text string `json:"normalized_text"`

	// Corrections lists, in application order, the labels of the
	// normalization steps that actually changed the text.
	Corrections []string `json:"corrections"`

	// PreservedTerms lists technical terms protected from normalization.
	PreservedTerms []string `json:"preserved_terms"`
}

// Complexity is the tier assigned to a text by the context classifier.
type Complexity string

// Complexity tiers in ascending order.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ComplexityFor derives the tier from a text's word count and its total
// technical keyword hits.
func ComplexityFor(wordCount, technicalScore int) Complexity {
	switch {
	case wordCount > 100 || technicalScore > 3:
		return ComplexityHigh
	case wordCount > 50:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// ContextProfile is the output of the context classification stage.
type ContextProfile struct {
	// Domain is the winning subject area, or "general" when no domain
	// keyword matched.
	Domain string

	// Complexity is the tier derived from length and keyword density.
	Complexity Complexity

	// Concepts is the deduplicated set of matched domain keywords.
	Concepts map[string]struct{}

	// TechnicalTerms lists every keyword match in table order and may
	// contain duplicates when a keyword belongs to several domains.
	TechnicalTerms []string

	// WordCount is the whitespace-token count of the analyzed text.
	WordCount int

	// TechnicalScore is the total keyword hit count across all domains.
	TechnicalScore int
}

// ConceptList returns the concept set as a sorted slice.
func (p ContextProfile) ConceptList() []string {
	out := make([]string, 0, len(p.Concepts))
	for c := range p.Concepts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

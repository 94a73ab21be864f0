package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/answerlab/go-grader/internal/domain"
)

func TestAnalyze_EmptyText(t *testing.T) {
	profile := New().Analyze("")

	assert.Equal(t, GeneralDomain, profile.Domain)
	assert.Equal(t, domain.ComplexityLow, profile.Complexity)
	assert.Empty(t, profile.Concepts)
	assert.Empty(t, profile.TechnicalTerms)
	assert.Zero(t, profile.WordCount)
	assert.Zero(t, profile.TechnicalScore)
}

func TestAnalyze_NoKeywordMatches(t *testing.T) {
	profile := New().Analyze("hello there friendly reader")

	assert.Equal(t, GeneralDomain, profile.Domain)
	assert.Zero(t, profile.TechnicalScore)
}

func TestAnalyze_DomainSelection(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantDomain string
	}{
		{
			name:       "software text picks CSE",
			text:       "the algorithm uses a loop over an array",
			wantDomain: "CSE",
		},
		{
			name:       "electronics text picks ECE",
			text:       "the circuit amplifier adjusts signal frequency",
			wantDomain: "ECE",
		},
		{
			name:       "civil text picks Civil",
			text:       "the concrete foundation carries the beam load",
			wantDomain: "Civil",
		},
		{
			// voltage and current appear in both the ECE and EEE keyword
			// sets; the earlier table entry must win the tie.
			name:       "tie breaks to first table entry",
			text:       "voltage current",
			wantDomain: "ECE",
		},
		{
			name:       "math text picks mathematics",
			text:       "solve the equation with the quadratic formula",
			wantDomain: "mathematics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := New().Analyze(tt.text)
			assert.Equal(t, tt.wantDomain, profile.Domain)
		})
	}
}

func TestAnalyze_SubstringContainment(t *testing.T) {
	// "barcode" contains "code"; matching is substring based, not token based.
	profile := New().Analyze("scan the barcode label")

	assert.Contains(t, profile.Concepts, "code")
	assert.Equal(t, "CSE", profile.Domain)
}

func TestAnalyze_SharedKeywordCountedPerDomain(t *testing.T) {
	// "code" belongs to both CSE and programming: it is appended to
	// TechnicalTerms once per owning domain but deduplicated in Concepts.
	profile := New().Analyze("clean code matters")

	assert.Equal(t, []string{"code", "code"}, profile.TechnicalTerms)
	assert.Len(t, profile.Concepts, 1)
	assert.Equal(t, 2, profile.TechnicalScore)
}

func TestAnalyze_Complexity(t *testing.T) {
	longPlain := strings.TrimSpace(strings.Repeat("pleasant ", 101))
	mediumPlain := strings.TrimSpace(strings.Repeat("pleasant ", 60))

	assert.Equal(t, domain.ComplexityHigh, New().Analyze(longPlain).Complexity)
	assert.Equal(t, domain.ComplexityMedium, New().Analyze(mediumPlain).Complexity)
	assert.Equal(t, domain.ComplexityLow, New().Analyze("short answer").Complexity)

	// Few words but many technical hits still rates high.
	dense := New().Analyze("algorithm code loop array")
	assert.Equal(t, domain.ComplexityHigh, dense.Complexity)
}

func TestConceptCoverage(t *testing.T) {
	set := func(items ...string) map[string]struct{} {
		m := make(map[string]struct{}, len(items))
		for _, it := range items {
			m[it] = struct{}{}
		}
		return m
	}

	tests := []struct {
		name      string
		candidate map[string]struct{}
		reference map[string]struct{}
		want      float64
	}{
		{name: "empty reference is full coverage", candidate: set("a"), reference: set(), want: 1.0},
		{name: "nil reference is full coverage", candidate: nil, reference: nil, want: 1.0},
		{name: "full overlap", candidate: set("a", "b"), reference: set("a", "b"), want: 1.0},
		{name: "half overlap", candidate: set("a"), reference: set("a", "b"), want: 0.5},
		{name: "no overlap", candidate: set("c"), reference: set("a", "b"), want: 0.0},
		{name: "empty candidate", candidate: set(), reference: set("a", "b"), want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConceptCoverage(tt.candidate, tt.reference), 1e-12)
		})
	}
}

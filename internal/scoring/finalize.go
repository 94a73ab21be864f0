// Package scoring turns an ensemble similarity and concept evidence into
// the final grade. It applies the concept-coverage bonus, the
// partial-credit floor for weak answers that still name key concepts,
// and derives the scoring-stage confidence that gates human review.
package scoring

import (
	"github.com/answerlab/go-grader/internal/domain"
)

const (
	// ConceptBonusFactor scales concept coverage into the additive bonus.
	ConceptBonusFactor = 0.15

	// PartialCreditFactor scales the present/total concept ratio into the
	// partial-credit floor applied to weak similarities.
	PartialCreditFactor = 0.3

	// PartialCreditCutoff is the adjusted similarity below which partial
	// credit is considered.
	PartialCreditCutoff = 0.5
)

const (
	// BaseConfidence is the starting scoring-stage confidence.
	BaseConfidence = 0.7

	// HighCoverageBoost is added when concept coverage exceeds 0.8.
	HighCoverageBoost = 0.2

	// ModerateCoverageBoost is added when concept coverage exceeds 0.6.
	ModerateCoverageBoost = 0.1

	// WeakEnsemblePenalty is subtracted when the ensemble score is below 0.3.
	WeakEnsemblePenalty = 0.2

	// MissingConceptsPenalty is subtracted when the reference defined key
	// concepts and the candidate matched none of them.
	MissingConceptsPenalty = 0.3

	// MinConfidence is the lower clamp of the scoring-stage confidence.
	MinConfidence = 0.3

	highCoverageThreshold     = 0.8
	moderateCoverageThreshold = 0.6
	weakEnsembleThreshold     = 0.3
)

// Finalizer computes the final grade and its breakdown. Stateless and
// safe for concurrent use.
type Finalizer struct{}

// New returns a Finalizer.
func New() *Finalizer {
	return &Finalizer{}
}

// Finalize derives the final score from the ensemble result and concept
// evidence.
//
// The adjusted similarity is the ensemble score plus the coverage bonus,
// capped at 1.0. When that lands below the partial-credit cutoff and the
// candidate still matched at least one key concept, the similarity is
// floored at (present/total) * PartialCreditFactor. The grade is the
// adjusted similarity scaled to the 0..6 range, rounded to two decimals.
//
// The returned confidence supersedes the ensemble's variance-derived
// confidence: it is the only value the review decision looks at.
func (f *Finalizer) Finalize(ensembleScore, conceptCoverage float64, present, total int) domain.ScoringBreakdown {
	bonus := conceptCoverage * ConceptBonusFactor

	adjusted := ensembleScore + bonus
	if adjusted > 1.0 {
		adjusted = 1.0
	}

	if adjusted < PartialCreditCutoff && present > 0 && total > 0 {
		partial := (float64(present) / float64(total)) * PartialCreditFactor
		if partial > adjusted {
			adjusted = partial
		}
	}

	finalScore := domain.ClampScore(domain.RoundTo(adjusted*domain.MaxScore, 2))

	confidence := BaseConfidence
	switch {
	case conceptCoverage > highCoverageThreshold:
		confidence += HighCoverageBoost
	case conceptCoverage > moderateCoverageThreshold:
		confidence += ModerateCoverageBoost
	}
	if ensembleScore < weakEnsembleThreshold {
		confidence -= WeakEnsemblePenalty
	}
	if present == 0 && total > 0 {
		confidence -= MissingConceptsPenalty
	}
	if confidence < MinConfidence {
		confidence = MinConfidence
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return domain.ScoringBreakdown{
		EnsembleScore:      domain.RoundTo(ensembleScore, 4),
		ConceptCoverage:    domain.RoundTo(conceptCoverage, 4),
		ConceptBonus:       domain.RoundTo(bonus, 4),
		AdjustedSimilarity: domain.RoundTo(adjusted, 4),
		FinalScore:         finalScore,
		// Confidence stays unrounded: the review decision compares it
		// against the threshold and must see the exact value.
		Confidence:         confidence,
		KeyConceptsPresent: present,
		TotalKeyConcepts:   total,
	}
}

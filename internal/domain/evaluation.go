// Package domain provides the core types for grading candidate answers
// against reference answers. It defines the data model shared by every
// pipeline stage and the invariants those stages must preserve.
//
// Evaluation model:
//   - Four independent similarity signals combined under fixed weights.
//   - A concept-coverage bonus and partial-credit adjustment on top of
//     the ensemble score.
//   - Two confidence estimates: one derived from signal variance inside
//     the ensemble, one derived from concept evidence at scoring time.
//     Only the scoring-stage confidence gates the review flag.
//   - Bounded outputs: similarities and confidences in [0,1], grades in
//     [0,6] rounded to two decimals.
package domain

import "math"

// Signal identifies one independently computed similarity heuristic.
type Signal string

// Signals produced by the ensemble stage.
const (
	SignalSemantic  Signal = "semantic"  // word-set or embedding similarity
	SignalKeyword   Signal = "keyword"   // reference token overlap
	SignalLength    Signal = "length"    // word-count ratio
	SignalStructure Signal = "structure" // sentence-count ratio
)

// SignalScores holds the per-signal similarity values for one evaluation.
// An empty map means the ensemble stage short-circuited or degraded and
// produced no individual signals.
type SignalScores map[Signal]float64

const (
	// SemanticWeight is the ensemble weight of the semantic signal.
	SemanticWeight = 0.60
	// KeywordWeight is the ensemble weight of the keyword-overlap signal.
	KeywordWeight = 0.20
	// LengthWeight is the ensemble weight of the length-ratio signal.
	LengthWeight = 0.10
	// StructureWeight is the ensemble weight of the structure-ratio signal.
	StructureWeight = 0.10
)

const (
	// MaxScore is the upper bound of the grade scale.
	MaxScore = 6.0

	// DefaultReviewThreshold is the scoring-stage confidence below which
	// an evaluation is flagged for human review.
	DefaultReviewThreshold = 0.7
)

// DefaultSignalWeights returns the fixed ensemble weights keyed by signal.
// Returns a fresh copy to prevent mutation. The weights sum to exactly 1.0.
func DefaultSignalWeights() map[Signal]float64 {
	return map[Signal]float64{
		SignalSemantic:  SemanticWeight,
		SignalKeyword:   KeywordWeight,
		SignalLength:    LengthWeight,
		SignalStructure: StructureWeight,
	}
}

// EnsembleResult is the output of the multi-signal ensemble stage.
//
// Confidence here is variance-derived with a hard floor of 0.5: the four
// signals can disagree completely and confidence still will not drop below
// the floor. The scoring stage computes its own confidence and that one,
// not this one, decides whether an evaluation needs review.
type EnsembleResult struct {
	// WeightedScore is the weight-combined similarity in [0,1].
	WeightedScore float64 `json:"weighted_score" validate:"min=0,max=1"`

	// Confidence is derived from signal variance, floored at 0.5.
	// A degraded ensemble reports 0.3 instead, below the floor on purpose
	// so downstream consumers can tell the two apart.
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Signals holds the individual signal values; empty when the stage
	// short-circuited on empty input or fell back after a failure.
	Signals SignalScores `json:"signals" validate:"dive,min=0,max=1"`

	// Variance is the population variance of the signal values.
	Variance float64 `json:"variance" validate:"min=0"`
}

// ScoringBreakdown records every intermediate value of the final-score
// calculation so a grade can be audited after the fact.
type ScoringBreakdown struct {
	EnsembleScore      float64 `json:"ensemble_score"      validate:"min=0,max=1"`
	ConceptCoverage    float64 `json:"concept_coverage"    validate:"min=0,max=1"`
	ConceptBonus       float64 `json:"concept_bonus"       validate:"min=0"`
	AdjustedSimilarity float64 `json:"adjusted_similarity" validate:"min=0,max=1"`
	FinalScore         float64 `json:"final_score"         validate:"min=0,max=6"`
	Confidence         float64 `json:"confidence"          validate:"min=0,max=1"`
	KeyConceptsPresent int     `json:"key_concepts_present" validate:"min=0"`
	TotalKeyConcepts   int     `json:"total_key_concepts"   validate:"min=0"`
}

// StageTimes maps a pipeline stage to its wall-clock duration in
// milliseconds, keyed as preprocessing_ms, context_analysis_ms,
// ensemble_evaluation_ms and scoring_ms.
type StageTimes map[string]float64

// PreprocessingChanges lists the normalization corrections applied to each
// side of the pair. Field names match the wire contract of the service.
type PreprocessingChanges struct {
	ModelAnswer   []string `json:"model_answer"`
	StudentAnswer []string `json:"student_answer"`
}

// EvaluationDetails is the optional full breakdown attached to a result
// when the caller asks for one.
type EvaluationDetails struct {
	EnsembleScore        float64              `json:"ensemble_score"`
	ModelScores          SignalScores         `json:"model_scores"`
	ConceptCoverage      float64              `json:"concept_coverage"`
	KeyConceptsFound     int                  `json:"key_concepts_found"`
	TotalKeyConcepts     int                  `json:"total_key_concepts"`
	Domain               string               `json:"domain"`
	Complexity           Complexity           `json:"complexity"`
	TechnicalTermsFound  []string             `json:"technical_terms_found"`
	PreprocessingChanges PreprocessingChanges `json:"preprocessing_changes"`
	Scoring              ScoringBreakdown     `json:"scoring_breakdown"`
	StageTimes           StageTimes           `json:"stage_times"`
	ProcessingTimeMs     float64              `json:"processing_time_ms"`
}

// EvaluationResult is the terminal output of one evaluation. Every path
// through the pipeline, including all degraded ones, produces a value of
// this shape.
type EvaluationResult struct {
	// Similarity is the adjusted similarity in [0,1].
	Similarity float64 `json:"similarity" validate:"min=0,max=1"`

	// Score is the grade in [0,6], rounded to two decimals.
	Score float64 `json:"score" validate:"min=0,max=6"`

	// Confidence is the scoring-stage confidence in [0,1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// NeedsReview is true iff Confidence fell below the review threshold.
	NeedsReview bool `json:"needs_review"`

	// Fallback marks a result produced by the coarse single-signal
	// fallback after an unexpected pipeline failure.
	Fallback bool `json:"fallback,omitempty"`

	// Details carries the full breakdown when requested.
	Details *EvaluationDetails `json:"details,omitempty"`
}

// ResultForEmptyReference is the fixed result when the reference answer is
// empty: nothing can be graded, so the evaluation reports zero confidence
// and demands review.
func ResultForEmptyReference() EvaluationResult {
	return EvaluationResult{Similarity: 0, Score: 0, Confidence: 0, NeedsReview: true}
}

// ResultForEmptyCandidate is the fixed result when the candidate answer is
// empty while the reference is not: the absence of an answer is a
// legitimate zero, reported with full confidence and no review flag.
func ResultForEmptyCandidate() EvaluationResult {
	return EvaluationResult{Similarity: 0, Score: 0, Confidence: 1.0, NeedsReview: false}
}

// Clamp01 bounds a value to the range [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ClampScore bounds a grade to the range [0, MaxScore].
func ClampScore(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > MaxScore {
		return MaxScore
	}
	return x
}

// RoundTo rounds x to the given number of decimal places.
func RoundTo(x float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(x*factor) / factor
}

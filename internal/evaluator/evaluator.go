// Package evaluator orchestrates the grading pipeline: normalization,
// context analysis, ensemble scoring and final grading run in sequence
// over one reference/candidate pair. Stages degrade independently where
// a substitute value exists; a failure with no substitute pushes the
// whole evaluation onto a coarse token-overlap fallback.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/answerlab/go-grader/internal/audit"
	"github.com/answerlab/go-grader/internal/classify"
	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/ensemble"
	"github.com/answerlab/go-grader/internal/faults"
	"github.com/answerlab/go-grader/internal/normalize"
	"github.com/answerlab/go-grader/internal/scoring"
)

// Pipeline stage names, used in stage timings, metrics and fault logs.
const (
	StagePreprocessing = "preprocessing"
	StageContext       = "context_analysis"
	StageEnsemble      = "ensemble_evaluation"
	StageScoring       = "scoring"
)

// DefaultEnsembleSoftLimit is the wall-clock budget for the ensemble
// stage. Exceeding it is logged, never enforced.
const DefaultEnsembleSoftLimit = 5 * time.Second

// coarseConfidence is the fixed confidence of the last-resort fallback
// result. It sits below the review threshold so every fallback result
// is flagged.
const coarseConfidence = 0.5

// Normalizer cleans raw answer text ahead of analysis and scoring.
type Normalizer interface {
	Preprocess(text string) domain.NormalizedText
}

// Classifier profiles normalized text by domain, complexity and concepts.
type Classifier interface {
	Analyze(text string) domain.ContextProfile
}

// EnsembleScorer combines the similarity signals for one answer pair.
type EnsembleScorer interface {
	Evaluate(ctx context.Context, reference, candidate string) (domain.EnsembleResult, error)
}

// Finalizer turns the ensemble score and concept evidence into the
// final grade and its confidence.
type Finalizer interface {
	Finalize(ensembleScore, conceptCoverage float64, present, total int) domain.ScoringBreakdown
}

// StageMetrics receives per-stage and per-evaluation observations.
// Implementations must be safe for concurrent use.
type StageMetrics interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveEvaluation(elapsed time.Duration, score, confidence float64, needsReview bool)
}

// NoOpMetrics discards every observation.
type NoOpMetrics struct{}

// ObserveStage implements StageMetrics.
func (NoOpMetrics) ObserveStage(string, time.Duration) {}

// ObserveEvaluation implements StageMetrics.
func (NoOpMetrics) ObserveEvaluation(time.Duration, float64, float64, bool) {}

// Deps holds the pipeline stages and ambient services the orchestrator
// composes. Nil fields are replaced with working defaults, so the zero
// Deps value yields a fully lexical, non-persisting pipeline.
type Deps struct {
	Normalizer Normalizer
	Classifier Classifier
	Ensemble   EnsembleScorer
	Finalizer  Finalizer
	Faults     *faults.Handler
	Audit      audit.Sink
	Metrics    StageMetrics
	Logger     *slog.Logger
}

// Params tunes orchestration. Zero values select the defaults.
type Params struct {
	// ReviewThreshold is the scoring confidence below which a result is
	// flagged for human review.
	ReviewThreshold float64

	// EnsembleSoftLimit is the soft wall-clock budget for the ensemble
	// stage.
	EnsembleSoftLimit time.Duration
}

// Orchestrator runs evaluations. It is stateless between calls and safe
// for concurrent use when its dependencies are.
type Orchestrator struct {
	normalizer Normalizer
	classifier Classifier
	scorer     EnsembleScorer
	finalizer  Finalizer
	faults     *faults.Handler
	audit      audit.Sink
	metrics    StageMetrics
	logger     *slog.Logger

	reviewThreshold float64
	softLimit       time.Duration
}

// New builds an Orchestrator, filling any nil dependency with its
// default implementation.
func New(deps Deps, params Params) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.New()
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.New()
	}
	if deps.Ensemble == nil {
		deps.Ensemble = ensemble.New(nil, deps.Logger)
	}
	if deps.Finalizer == nil {
		deps.Finalizer = scoring.New()
	}
	if deps.Faults == nil {
		deps.Faults = faults.New(deps.Logger)
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoOpSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NoOpMetrics{}
	}
	if params.ReviewThreshold <= 0 {
		params.ReviewThreshold = domain.DefaultReviewThreshold
	}
	if params.EnsembleSoftLimit <= 0 {
		params.EnsembleSoftLimit = DefaultEnsembleSoftLimit
	}

	return &Orchestrator{
		normalizer:      deps.Normalizer,
		classifier:      deps.Classifier,
		scorer:          deps.Ensemble,
		finalizer:       deps.Finalizer,
		faults:          deps.Faults,
		audit:           deps.Audit,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		reviewThreshold: params.ReviewThreshold,
		softLimit:       params.EnsembleSoftLimit,
	}
}

// Evaluate grades a candidate answer against a reference answer. Every
// path returns a usable result: empty inputs resolve to fixed boundary
// results, single-stage failures degrade to substitute values, and an
// unrecoverable stage failure produces a coarse fallback result. Only a
// failure of the fallback itself returns an error.
func (o *Orchestrator) Evaluate(ctx context.Context, reference, candidate string, detailed bool) (domain.EvaluationResult, error) {
	start := time.Now()

	// Boundary inputs resolve before any stage runs and are never audited.
	if strings.TrimSpace(reference) == "" {
		result := domain.ResultForEmptyReference()
		o.metrics.ObserveEvaluation(time.Since(start), result.Score, result.Confidence, result.NeedsReview)
		return result, nil
	}
	if strings.TrimSpace(candidate) == "" {
		result := domain.ResultForEmptyCandidate()
		o.metrics.ObserveEvaluation(time.Since(start), result.Score, result.Confidence, result.NeedsReview)
		return result, nil
	}

	result, err := o.run(ctx, reference, candidate, detailed, start)
	if err != nil {
		result, err = o.recoverCoarse(reference, candidate, err)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
	}

	o.metrics.ObserveEvaluation(time.Since(start), result.Score, result.Confidence, result.NeedsReview)
	return result, nil
}

type profilePair struct {
	reference domain.ContextProfile
	candidate domain.ContextProfile
}

func (o *Orchestrator) run(ctx context.Context, reference, candidate string, detailed bool, start time.Time) (domain.EvaluationResult, error) {
	times := domain.StageTimes{}

	stageStart := time.Now()
	normRef := o.normalizeOne(reference)
	normCand := o.normalizeOne(candidate)
	o.observeStage(StagePreprocessing, times, stageStart)

	stageStart = time.Now()
	profiles, err := guard(StageContext, func() (profilePair, error) {
		return profilePair{
			reference: o.classifier.Analyze(normRef.Text),
			candidate: o.classifier.Analyze(normCand.Text),
		}, nil
	})
	if err != nil {
		o.faults.Record(StageContext, err)
		return domain.EvaluationResult{}, err
	}
	coverage := classify.ConceptCoverage(profiles.candidate.Concepts, profiles.reference.Concepts)
	o.observeStage(StageContext, times, stageStart)

	stageStart = time.Now()
	ens, err := guard(StageEnsemble, func() (domain.EnsembleResult, error) {
		return o.scorer.Evaluate(ctx, normRef.Text, normCand.Text)
	})
	if err != nil {
		ens = o.faults.FallbackEnsemble(err)
	}
	if elapsed := o.observeStage(StageEnsemble, times, stageStart); elapsed > o.softLimit {
		o.logger.Warn("ensemble stage exceeded soft time limit",
			"elapsed", elapsed,
			"limit", o.softLimit)
	}

	stageStart = time.Now()
	total := len(profiles.reference.Concepts)
	// Truncation, not rounding: the present count is derived back from
	// the coverage ratio.
	present := int(coverage * float64(total))
	breakdown, err := guard(StageScoring, func() (domain.ScoringBreakdown, error) {
		return o.finalizer.Finalize(ens.WeightedScore, coverage, present, total), nil
	})
	if err != nil {
		o.faults.Record(StageScoring, err)
		return domain.EvaluationResult{}, err
	}
	o.observeStage(StageScoring, times, stageStart)

	needsReview := breakdown.Confidence < o.reviewThreshold
	if needsReview {
		o.flagForReview(ctx, reference, candidate, breakdown)
	}

	result := domain.EvaluationResult{
		Similarity:  breakdown.AdjustedSimilarity,
		Score:       breakdown.FinalScore,
		Confidence:  breakdown.Confidence,
		NeedsReview: needsReview,
	}

	if detailed {
		result.Details = &domain.EvaluationDetails{
			EnsembleScore:       domain.RoundTo(ens.WeightedScore, 4),
			ModelScores:         roundedSignals(ens.Signals),
			ConceptCoverage:     breakdown.ConceptCoverage,
			KeyConceptsFound:    breakdown.KeyConceptsPresent,
			TotalKeyConcepts:    breakdown.TotalKeyConcepts,
			Domain:              profiles.reference.Domain,
			Complexity:          profiles.reference.Complexity,
			TechnicalTermsFound: profiles.candidate.TechnicalTerms,
			PreprocessingChanges: domain.PreprocessingChanges{
				ModelAnswer:   normRef.Corrections,
				StudentAnswer: normCand.Corrections,
			},
			Scoring:          breakdown,
			StageTimes:       times,
			ProcessingTimeMs: domain.RoundTo(time.Since(start).Seconds()*1000, 2),
		}
	}

	return result, nil
}

// normalizeOne runs normalization for one side, substituting the raw
// text if the stage fails.
func (o *Orchestrator) normalizeOne(text string) domain.NormalizedText {
	out, err := guard(StagePreprocessing, func() (domain.NormalizedText, error) {
		return o.normalizer.Preprocess(text), nil
	})
	if err != nil {
		return o.faults.DegradedNormalize(text, err)
	}
	return out
}

// recoverCoarse produces the coarse fallback result after a stage
// failure with no substitute value. The result is always flagged for
// review and never audited, since the grade carries no stage evidence.
func (o *Orchestrator) recoverCoarse(reference, candidate string, cause error) (domain.EvaluationResult, error) {
	o.logger.Error("evaluation pipeline failed, using coarse fallback",
		"error", cause)

	result, err := guard("fallback", func() (domain.EvaluationResult, error) {
		similarity := coarseSimilarity(reference, candidate)
		return domain.EvaluationResult{
			Similarity:  domain.RoundTo(similarity, 4),
			Score:       domain.RoundTo(similarity*domain.MaxScore, 2),
			Confidence:  coarseConfidence,
			NeedsReview: true,
			Fallback:    true,
		}, nil
	})
	if err != nil {
		o.faults.Record("fallback", err)
		return domain.EvaluationResult{}, fmt.Errorf("%w: %v", domain.ErrEvaluationFailed, cause)
	}
	return result, nil
}

func (o *Orchestrator) flagForReview(ctx context.Context, reference, candidate string, breakdown domain.ScoringBreakdown) {
	entry := audit.NewEntry(reference, candidate, breakdown.FinalScore, domain.RoundTo(breakdown.Confidence, 4))
	if err := o.audit.Append(ctx, entry); err != nil {
		o.logger.Warn("failed to append audit entry",
			"entry_id", entry.ID,
			"error", err)
	}
}

// observeStage records a stage's elapsed time into the stage-times map
// and the metrics sink, and returns it.
func (o *Orchestrator) observeStage(stage string, times domain.StageTimes, start time.Time) time.Duration {
	elapsed := time.Since(start)
	times[stage+"_ms"] = domain.RoundTo(elapsed.Seconds()*1000, 2)
	o.metrics.ObserveStage(stage, elapsed)
	return elapsed
}

// guard runs fn for the named stage, converting a panic into a typed
// stage error so one failing stage cannot take down the process.
func guard[T any](stage string, fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &faults.StageError{
				Stage: stage,
				Kind:  faults.KindPipeline,
				Err:   fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return fn()
}

// coarseSimilarity is the last-resort similarity: Jaccard overlap of the
// raw lowercased tokens longer than three characters.
func coarseSimilarity(reference, candidate string) float64 {
	refTokens := significantTokens(reference)
	candTokens := significantTokens(candidate)
	if len(refTokens) == 0 {
		return 0
	}

	intersection := 0
	union := len(refTokens)
	for token := range candTokens {
		if _, ok := refTokens[token]; ok {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func significantTokens(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(word) > 3 {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}

func roundedSignals(signals domain.SignalScores) domain.SignalScores {
	out := make(domain.SignalScores, len(signals))
	for name, value := range signals {
		out[name] = domain.RoundTo(value, 4)
	}
	return out
}

// Package ensemble combines four independent similarity signals into a
// weighted score with a variance-derived confidence.
//
// The semantic signal comes from a pluggable SemanticScorer; the default
// lexical scorer needs no external service. The remaining three signals
// (keyword overlap, length ratio, structure ratio) are computed locally
// and cannot fail. Only a failing oracle makes Evaluate return an error;
// the caller owns the documented fallback for that case.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/answerlab/go-grader/internal/domain"
)

// SemanticScorer produces the semantic similarity signal for a text pair.
// Implementations must return a value in [0,1]. A scorer backed by an
// external embedding service may fail; the lexical default never does.
type SemanticScorer interface {
	// Score compares reference and candidate text.
	Score(ctx context.Context, reference, candidate string) (float64, error)

	// Name identifies the scorer in logs and health reports.
	Name() string
}

// LexicalScorer is the default semantic oracle: Jaccard similarity over
// lowercase whitespace-tokenized word sets.
type LexicalScorer struct{}

// Score implements SemanticScorer.
func (LexicalScorer) Score(_ context.Context, reference, candidate string) (float64, error) {
	return Jaccard(reference, candidate), nil
}

// Name implements SemanticScorer.
func (LexicalScorer) Name() string { return "lexical" }

// Ensemble evaluates a normalized text pair under the fixed signal
// weights. Safe for concurrent use.
type Ensemble struct {
	weights  map[domain.Signal]float64
	semantic SemanticScorer
	logger   *slog.Logger
}

// New builds an Ensemble around the given semantic oracle. A nil scorer
// falls back to the lexical default.
func New(semantic SemanticScorer, logger *slog.Logger) *Ensemble {
	if semantic == nil {
		semantic = LexicalScorer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ensemble{
		weights:  domain.DefaultSignalWeights(),
		semantic: semantic,
		logger:   logger,
	}
}

// Evaluate computes the four signals and combines them.
//
// An empty reference or candidate short-circuits to a zero result with
// zero confidence and no signals. Otherwise the weighted score is the
// weight-sum of the signals clamped to [0,1], variance is the population
// variance of the four signal values, and confidence is
// max(0.5, 1 - min(variance, 1)). With four signals in [0,1] the
// variance tops out at 0.25, so the formula never actually reaches the
// 0.5 floor.
func (e *Ensemble) Evaluate(ctx context.Context, reference, candidate string) (domain.EnsembleResult, error) {
	if reference == "" || candidate == "" {
		return domain.EnsembleResult{Signals: domain.SignalScores{}}, nil
	}

	semantic, err := e.semantic.Score(ctx, reference, candidate)
	if err != nil {
		return domain.EnsembleResult{}, fmt.Errorf("semantic signal (%s): %w", e.semantic.Name(), err)
	}

	signals := domain.SignalScores{
		domain.SignalSemantic:  domain.Clamp01(semantic),
		domain.SignalKeyword:   keywordOverlap(reference, candidate),
		domain.SignalLength:    lengthRatio(reference, candidate),
		domain.SignalStructure: structureRatio(reference, candidate),
	}

	var weighted float64
	for signal, value := range signals {
		weighted += e.weights[signal] * value
	}

	variance := populationVariance(signals)

	confidence := 1 - min(variance, 1.0)
	if confidence < 0.5 {
		confidence = 0.5
	}

	return domain.EnsembleResult{
		WeightedScore: domain.Clamp01(weighted),
		Confidence:    confidence,
		Signals:       signals,
		Variance:      variance,
	}, nil
}

// Jaccard returns the word-set Jaccard similarity of two texts: the size
// of the intersection over the size of the union of their lowercase
// whitespace-tokenized word sets. Zero if either set is empty.
func Jaccard(a, b string) float64 {
	setA := wordSet(tokenize(a))
	setB := wordSet(tokenize(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// keywordOverlap counts reference tokens, duplicates included, that occur
// anywhere in the candidate, normalized by the larger token count.
func keywordOverlap(reference, candidate string) float64 {
	refTokens := tokenize(reference)
	candTokens := tokenize(candidate)

	denom := max(len(refTokens), len(candTokens))
	if denom == 0 {
		return 0
	}

	candSet := wordSet(candTokens)
	hits := 0
	for _, tok := range refTokens {
		if _, ok := candSet[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(denom)
}

// lengthRatio compares word counts: smaller over larger, 1.0 when both
// texts are empty of words, 0.0 when exactly one is.
func lengthRatio(reference, candidate string) float64 {
	nRef := len(strings.Fields(reference))
	nCand := len(strings.Fields(candidate))

	switch {
	case nRef == 0 && nCand == 0:
		return 1.0
	case nRef == 0 || nCand == 0:
		return 0.0
	}
	return float64(min(nRef, nCand)) / float64(max(nRef, nCand))
}

// structureRatio compares sentence counts: smaller over larger, 1.0 when
// neither text has a sentence, 0.5 when exactly one has none. Note the
// one-sided case scores 0.5 here but 0.0 in lengthRatio.
func structureRatio(reference, candidate string) float64 {
	nRef := sentenceCount(reference)
	nCand := sentenceCount(candidate)

	switch {
	case nRef == 0 && nCand == 0:
		return 1.0
	case nRef == 0 || nCand == 0:
		return 0.5
	}
	return float64(min(nRef, nCand)) / float64(max(nRef, nCand))
}

// sentenceCount counts the non-empty segments produced by splitting on
// the period character.
func sentenceCount(text string) int {
	count := 0
	for _, segment := range strings.Split(text, ".") {
		if strings.TrimSpace(segment) != "" {
			count++
		}
	}
	return count
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func wordSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// populationVariance is the mean squared deviation of the signal values.
func populationVariance(signals domain.SignalScores) float64 {
	if len(signals) == 0 {
		return 0
	}

	var mean float64
	for _, v := range signals {
		mean += v
	}
	mean /= float64(len(signals))

	var sumSq float64
	for _, v := range signals {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(signals))
}

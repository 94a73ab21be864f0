// Package faults classifies evaluation failures and supplies the
// documented degraded substitutes for failed stages. Counters are
// concurrency safe so the handler can be shared by every evaluation in
// the process.
//
// Three failure kinds exist. Input faults are empty or missing texts and
// resolve to fixed zero results. Degradations are single-stage failures
// replaced by that stage's substitute value. Pipeline faults are
// unexpected failures that push the whole evaluation onto the coarse
// fallback path.
package faults

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/answerlab/go-grader/internal/domain"
)

// Kind is the classification of an evaluation failure.
type Kind uint8

// Failure kinds in increasing severity.
const (
	KindUnknown Kind = iota
	KindInput
	KindDegradation
	KindPipeline
)

// String returns the stable name used in metrics and logs.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDegradation:
		return "degradation"
	case KindPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

const (
	// FallbackEnsembleScore is the weighted score substituted when the
	// ensemble stage fails.
	FallbackEnsembleScore = 0.5

	// FallbackEnsembleConfidence is the confidence substituted when the
	// ensemble stage fails. It sits below the ensemble's own 0.5 floor
	// so degraded results are distinguishable from computed ones.
	FallbackEnsembleConfidence = 0.3
)

// StageError wraps a failure raised inside a named pipeline stage.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (e *StageError) Unwrap() error { return e.Err }

// Classify maps an arbitrary error to a failure kind. Typed stage errors
// carry their own kind; context cancellation and timeouts count as
// degradations because the stage value was substituted, not lost.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}

	if errors.Is(err, domain.ErrInvalidRequest) {
		return KindInput
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindDegradation
	}

	return KindUnknown
}

// Handler counts failures by kind and produces the degraded substitute
// values stages fall back to. A single Handler serves the whole process.
type Handler struct {
	logger *slog.Logger

	input       atomic.Int64
	degradation atomic.Int64
	pipeline    atomic.Int64
	unknown     atomic.Int64
}

// Stats is a point-in-time snapshot of the failure counters.
type Stats struct {
	Input       int64 `json:"input"`
	Degradation int64 `json:"degradation"`
	Pipeline    int64 `json:"pipeline"`
	Unknown     int64 `json:"unknown"`
	Total       int64 `json:"total"`
}

// New returns a Handler logging through the given logger.
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// Record counts a failure under its classified kind and logs it with the
// stage it came from.
func (h *Handler) Record(stage string, err error) Kind {
	kind := Classify(err)
	h.counter(kind).Add(1)
	h.logger.Warn("evaluation fault",
		"stage", stage,
		"kind", kind.String(),
		"error", err)
	return kind
}

// DegradedNormalize is the substitute for a failed normalization stage:
// the original raw text passes through untouched with no corrections.
func (h *Handler) DegradedNormalize(text string, err error) domain.NormalizedText {
	h.degradation.Add(1)
	h.logger.Warn("normalization degraded, using raw text", "error", err)
	return domain.NormalizedText{
		Text:           text,
		Corrections:    []string{},
		PreservedTerms: []string{},
	}
}

// FallbackEnsemble is the substitute for a failed ensemble stage: a
// neutral score with below-floor confidence and no individual signals.
func (h *Handler) FallbackEnsemble(err error) domain.EnsembleResult {
	h.degradation.Add(1)
	h.logger.Warn("ensemble degraded, using fallback values", "error", err)
	return domain.EnsembleResult{
		WeightedScore: FallbackEnsembleScore,
		Confidence:    FallbackEnsembleConfidence,
		Signals:       domain.SignalScores{},
	}
}

// Stats snapshots the counters.
func (h *Handler) Stats() Stats {
	s := Stats{
		Input:       h.input.Load(),
		Degradation: h.degradation.Load(),
		Pipeline:    h.pipeline.Load(),
		Unknown:     h.unknown.Load(),
	}
	s.Total = s.Input + s.Degradation + s.Pipeline + s.Unknown
	return s
}

func (h *Handler) counter(kind Kind) *atomic.Int64 {
	switch kind {
	case KindInput:
		return &h.input
	case KindDegradation:
		return &h.degradation
	case KindPipeline:
		return &h.pipeline
	default:
		return &h.unknown
	}
}

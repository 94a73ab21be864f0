package monitor

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/answerlab/go-grader/internal/domain"
)

const (
	// accuracyWindow is how many recent evaluations the tracker retains.
	accuracyWindow = 100

	// trendSpan is the number of evaluations compared on each side when
	// deriving the score trend; trendDelta is the average-score movement
	// required before the trend leaves "stable".
	trendSpan  = 10
	trendDelta = 0.05

	// anomalyMinSamples and anomalySigma control outlier detection: a
	// score is anomalous when it sits more than anomalySigma standard
	// deviations from the window mean, once the window holds at least
	// anomalyMinSamples scores.
	anomalyMinSamples = 10
	anomalySigma      = 2.0
)

// Trend values reported by AccuracySnapshot.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// Accuracy tracks the quality of recent grades over a bounded window.
// All methods are safe for concurrent use.
type Accuracy struct {
	logger *slog.Logger

	total    atomic.Int64
	reviewed atomic.Int64

	mu     sync.Mutex
	scores []float64
	confs  []float64
	next   int
	filled bool
}

// AccuracySnapshot is a point-in-time view of the tracker. Score and
// confidence aggregates cover the retained window only; the totals
// cover the process lifetime.
type AccuracySnapshot struct {
	TotalEvaluations   int64   `json:"total_evaluations"`
	FlaggedForReview   int64   `json:"flagged_for_review"`
	WindowSize         int     `json:"window_size"`
	AvgScore           float64 `json:"avg_score"`
	MinScore           float64 `json:"min_score"`
	MaxScore           float64 `json:"max_score"`
	AvgConfidence      float64 `json:"avg_confidence"`
	LowConfidenceCount int     `json:"low_confidence_count"`
	LowConfidenceRate  float64 `json:"low_confidence_rate"`
	Trend              string  `json:"trend"`
}

// NewAccuracy builds an empty tracker.
func NewAccuracy(logger *slog.Logger) *Accuracy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accuracy{
		logger: logger,
		scores: make([]float64, accuracyWindow),
		confs:  make([]float64, accuracyWindow),
	}
}

// Record feeds one evaluation outcome into the window. A score far
// outside the recent distribution is logged before it is admitted.
func (a *Accuracy) Record(score, confidence float64, needsReview bool) {
	a.total.Add(1)
	if needsReview {
		a.reviewed.Add(1)
	}

	a.mu.Lock()
	anomalous, mean, stddev := a.anomalyLocked(score)

	a.scores[a.next] = score
	a.confs[a.next] = confidence
	a.next++
	if a.next == accuracyWindow {
		a.next = 0
		a.filled = true
	}
	a.mu.Unlock()

	if anomalous {
		a.logger.Warn("anomalous evaluation score",
			"score", score,
			"window_mean", domain.RoundTo(mean, 4),
			"window_stddev", domain.RoundTo(stddev, 4))
	}
}

// IsAnomaly reports whether a score would be an outlier against the
// current window.
func (a *Accuracy) IsAnomaly(score float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	anomalous, _, _ := a.anomalyLocked(score)
	return anomalous
}

// Snapshot assembles the current view of the tracker.
func (a *Accuracy) Snapshot() AccuracySnapshot {
	a.mu.Lock()
	scores := a.chronologicalLocked(a.scores)
	confs := a.chronologicalLocked(a.confs)
	a.mu.Unlock()

	snap := AccuracySnapshot{
		TotalEvaluations: a.total.Load(),
		FlaggedForReview: a.reviewed.Load(),
		WindowSize:       len(scores),
		Trend:            trendOf(scores),
	}
	if len(scores) == 0 {
		return snap
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		minScore = min(minScore, s)
		maxScore = max(maxScore, s)
	}

	lowCount := 0
	for _, c := range confs {
		if c < domain.DefaultReviewThreshold {
			lowCount++
		}
	}

	snap.AvgScore = domain.RoundTo(mean(scores), 4)
	snap.MinScore = minScore
	snap.MaxScore = maxScore
	snap.AvgConfidence = domain.RoundTo(mean(confs), 4)
	snap.LowConfidenceCount = lowCount
	snap.LowConfidenceRate = domain.RoundTo(float64(lowCount)/float64(len(confs)), 4)
	return snap
}

// anomalyLocked evaluates a score against the current window. Callers
// must hold mu.
func (a *Accuracy) anomalyLocked(score float64) (anomalous bool, windowMean, stddev float64) {
	scores := a.chronologicalLocked(a.scores)
	if len(scores) < anomalyMinSamples {
		return false, 0, 0
	}

	windowMean = mean(scores)
	var variance float64
	for _, s := range scores {
		d := s - windowMean
		variance += d * d
	}
	variance /= float64(len(scores))
	stddev = math.Sqrt(variance)

	return math.Abs(score-windowMean) > anomalySigma*stddev, windowMean, stddev
}

// chronologicalLocked copies the ring contents oldest-first. Callers
// must hold mu.
func (a *Accuracy) chronologicalLocked(ring []float64) []float64 {
	if !a.filled {
		return append([]float64(nil), ring[:a.next]...)
	}
	out := make([]float64, 0, accuracyWindow)
	out = append(out, ring[a.next:]...)
	return append(out, ring[:a.next]...)
}

// trendOf compares the newest trendSpan scores against the trendSpan
// before them.
func trendOf(scores []float64) string {
	if len(scores) < 2*trendSpan {
		return TrendInsufficientData
	}

	recent := mean(scores[len(scores)-trendSpan:])
	previous := mean(scores[len(scores)-2*trendSpan : len(scores)-trendSpan])

	switch {
	case recent-previous > trendDelta:
		return TrendImproving
	case previous-recent > trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Package monitor tracks service health: request throughput and
// latency, per-stage timings, runtime statistics and the rolling
// accuracy of recent grades.
package monitor

import (
	"log/slog"
	"time"

	"github.com/answerlab/go-grader/internal/evaluator"
)

// EvaluationStage is the synthetic stage name under which whole-pipeline
// latency is aggregated alongside the real stages.
const EvaluationStage = "evaluation_total"

// Monitor bundles the performance and accuracy trackers and adapts them
// to the evaluation pipeline's metrics interface.
type Monitor struct {
	performance *Performance
	accuracy    *Accuracy
}

var _ evaluator.StageMetrics = (*Monitor)(nil)

// New builds a Monitor. Anomalous grades are logged through logger.
func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		performance: NewPerformance(),
		accuracy:    NewAccuracy(logger),
	}
}

// Performance returns the request and stage latency tracker.
func (m *Monitor) Performance() *Performance { return m.performance }

// Accuracy returns the rolling grade-quality tracker.
func (m *Monitor) Accuracy() *Accuracy { return m.accuracy }

// ObserveStage implements evaluator.StageMetrics.
func (m *Monitor) ObserveStage(stage string, elapsed time.Duration) {
	m.performance.RecordStage(stage, elapsed)
}

// ObserveEvaluation implements evaluator.StageMetrics.
func (m *Monitor) ObserveEvaluation(elapsed time.Duration, score, confidence float64, needsReview bool) {
	m.performance.RecordStage(EvaluationStage, elapsed)
	m.accuracy.Record(score, confidence, needsReview)
}

// Package startup runs the pre-flight checks a grader instance performs
// before accepting traffic: configuration sanity, audit trail
// writability, dataset reachability, the embedding backend when one is
// enabled, and a smoke evaluation through the full pipeline.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/answerlab/go-grader/internal/config"
	"github.com/answerlab/go-grader/internal/dataset"
	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/ensemble"
	"github.com/answerlab/go-grader/internal/evaluator"
)

// Status of an individual check.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Overall report statuses.
const (
	ReportReady    = "ready"
	ReportDegraded = "degraded"
	ReportBlocked  = "blocked"
)

// smokeText is graded against itself during the smoke check. An intact
// pipeline must give an identical pair the maximum grade.
const smokeText = "binary search splits a sorted array"

// Check is the outcome of one pre-flight probe.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates all pre-flight checks. CanStart is false only when
// a failed check makes the service unusable; degraded-but-working
// conditions surface as warnings.
type Report struct {
	Status   string   `json:"status"`
	CanStart bool     `json:"can_start"`
	Checks   []Check  `json:"checks"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Evaluator grades one answer pair.
type Evaluator interface {
	Evaluate(ctx context.Context, reference, candidate string, detailed bool) (domain.EvaluationResult, error)
}

// Deps are the already-constructed services to probe. Store and Oracle
// may be nil when the corresponding feature is not wired; Evaluator
// falls back to a default pipeline so the smoke check always runs.
type Deps struct {
	Config    config.Config
	Store     *dataset.Store
	Oracle    ensemble.SemanticScorer
	Evaluator Evaluator
	Logger    *slog.Logger
}

// Run executes every pre-flight check and folds the outcomes into a
// Report.
func Run(ctx context.Context, deps Deps) Report {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = evaluator.New(evaluator.Deps{Logger: deps.Logger}, evaluator.Params{})
	}

	r := Report{Status: ReportReady, CanStart: true}
	r.add(checkConfig(deps.Config))
	r.add(checkAudit(deps.Config.Audit.Path))
	r.add(checkDataset(ctx, deps.Store))
	r.add(checkEmbedding(ctx, deps.Config, deps.Oracle))
	r.add(checkSmoke(ctx, deps.Evaluator))
	return r
}

// Log writes the report through the given logger, one line per check
// plus a summary.
func (r Report) Log(logger *slog.Logger) {
	for _, c := range r.Checks {
		attrs := []any{"check", c.Name, "status", c.Status}
		if c.Detail != "" {
			attrs = append(attrs, "detail", c.Detail)
		}
		switch c.Status {
		case StatusFail:
			logger.Error("startup check failed", attrs...)
		case StatusWarn:
			logger.Warn("startup check degraded", attrs...)
		default:
			logger.Info("startup check passed", attrs...)
		}
	}
	logger.Info("startup report",
		"status", r.Status,
		"can_start", r.CanStart,
		"checks", len(r.Checks),
		"errors", len(r.Errors),
		"warnings", len(r.Warnings))
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
	switch c.Status {
	case StatusFail:
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", c.Name, c.Detail))
		r.Status = ReportBlocked
		r.CanStart = false
	case StatusWarn:
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %s", c.Name, c.Detail))
		if r.Status == ReportReady {
			r.Status = ReportDegraded
		}
	}
}

func checkConfig(cfg config.Config) Check {
	if err := cfg.Validate(); err != nil {
		return Check{Name: "config", Status: StatusFail, Detail: err.Error()}
	}
	return Check{Name: "config", Status: StatusPass}
}

// checkAudit probes the audit trail path with an append open. A grader
// without an audit trail still grades, so failures only degrade.
func checkAudit(path string) Check {
	if path == "" {
		return Check{Name: "audit", Status: StatusWarn, Detail: "no audit path configured"}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Check{Name: "audit", Status: StatusWarn, Detail: fmt.Sprintf("cannot create audit directory: %v", err)}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Check{Name: "audit", Status: StatusWarn, Detail: fmt.Sprintf("audit path not writable: %v", err)}
	}
	_ = f.Close()
	return Check{Name: "audit", Status: StatusPass}
}

func checkDataset(ctx context.Context, store *dataset.Store) Check {
	if store == nil {
		return Check{Name: "dataset", Status: StatusWarn, Detail: "no dataset store wired"}
	}
	if err := store.Ping(ctx); err != nil {
		return Check{Name: "dataset", Status: StatusWarn, Detail: fmt.Sprintf("dataset unreachable: %v", err)}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return Check{Name: "dataset", Status: StatusWarn, Detail: fmt.Sprintf("dataset stats unavailable: %v", err)}
	}
	return Check{Name: "dataset", Status: StatusPass, Detail: fmt.Sprintf("%d validation cases", stats.Total)}
}

// checkEmbedding probes the semantic backend once. The ensemble degrades
// to lexical signals on its own, so an unreachable backend never blocks
// startup.
func checkEmbedding(ctx context.Context, cfg config.Config, oracle ensemble.SemanticScorer) Check {
	if !cfg.Embedding.Enabled {
		return Check{Name: "embedding", Status: StatusPass, Detail: "disabled, lexical signals only"}
	}
	if oracle == nil {
		return Check{Name: "embedding", Status: StatusWarn, Detail: "enabled but no client wired"}
	}
	if _, err := oracle.Score(ctx, smokeText, smokeText); err != nil {
		return Check{Name: "embedding", Status: StatusWarn, Detail: fmt.Sprintf("%s backend unreachable, degrading to lexical signals: %v", oracle.Name(), err)}
	}
	return Check{Name: "embedding", Status: StatusPass, Detail: fmt.Sprintf("%s backend reachable", oracle.Name())}
}

// checkSmoke pushes an identical pair through the pipeline. Anything
// short of a clean maximum grade means the pipeline itself is broken,
// which blocks startup.
func checkSmoke(ctx context.Context, eval Evaluator) Check {
	result, err := eval.Evaluate(ctx, smokeText, smokeText, false)
	if err != nil {
		return Check{Name: "smoke", Status: StatusFail, Detail: fmt.Sprintf("smoke evaluation failed: %v", err)}
	}
	if result.Fallback {
		return Check{Name: "smoke", Status: StatusFail, Detail: "smoke evaluation fell back to coarse scoring"}
	}
	if result.Score != domain.MaxScore || result.NeedsReview {
		return Check{Name: "smoke", Status: StatusFail,
			Detail: fmt.Sprintf("identical pair scored %.2f (review=%t), want %.2f", result.Score, result.NeedsReview, domain.MaxScore)}
	}
	return Check{Name: "smoke", Status: StatusPass,
		Detail: fmt.Sprintf("identical pair scored %.2f with confidence %.2f", result.Score, result.Confidence)}
}

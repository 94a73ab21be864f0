package dataset

import (
	"context"
	"math"

	"github.com/answerlab/go-grader/internal/domain"
)

const (
	// ScoreTolerance is how far a produced score may sit from a case's
	// expected score and still count as a pass.
	ScoreTolerance = 1.0

	// PassThreshold is the fraction of cases that must pass for the
	// sweep as a whole to pass.
	PassThreshold = 0.8
)

// ScoreFunc produces a grade for one reference/candidate pair.
type ScoreFunc func(ctx context.Context, reference, candidate string) (float64, error)

// CaseResult is the outcome of scoring one validation case.
type CaseResult struct {
	CaseID   string  `json:"case_id"`
	Domain   string  `json:"domain"`
	Expected float64 `json:"expected_score"`
	Actual   float64 `json:"actual_score"`
	Delta    float64 `json:"delta"`
	Pass     bool    `json:"pass"`
	Error    string  `json:"error,omitempty"`
}

// DomainAccuracy aggregates sweep results for one domain.
type DomainAccuracy struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Accuracy float64 `json:"accuracy"`
}

// Report is the outcome of an accuracy sweep over the whole dataset.
type Report struct {
	Total     int                       `json:"total_cases"`
	Passed    int                       `json:"passed"`
	Failed    int                       `json:"failed"`
	Accuracy  float64                   `json:"accuracy"`
	Threshold float64                   `json:"threshold"`
	Pass      bool                      `json:"pass"`
	PerDomain map[string]DomainAccuracy `json:"per_domain"`
	Failures  []CaseResult              `json:"failures,omitempty"`
}

// RunAccuracy scores every stored case with score and compares the
// result against the case's expected score. A case passes when the
// produced score lies within ScoreTolerance of the expectation; the
// sweep passes when at least PassThreshold of cases pass. A scoring
// error fails that case without aborting the sweep.
func (s *Store) RunAccuracy(ctx context.Context, score ScoreFunc) (Report, error) {
	cases, err := s.ListCases(ctx, "")
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Total:     len(cases),
		Threshold: PassThreshold,
		PerDomain: map[string]DomainAccuracy{},
	}

	for _, c := range cases {
		result := CaseResult{
			CaseID:   c.ID,
			Domain:   c.Domain,
			Expected: c.ExpectedScore,
		}

		actual, err := score(ctx, c.ModelAnswer, c.StudentAnswer)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Actual = actual
			result.Delta = domain.RoundTo(math.Abs(actual-c.ExpectedScore), 4)
			result.Pass = result.Delta <= ScoreTolerance
		}

		agg := report.PerDomain[c.Domain]
		agg.Total++
		if result.Pass {
			agg.Passed++
			report.Passed++
		} else {
			report.Failed++
			report.Failures = append(report.Failures, result)
		}
		agg.Accuracy = domain.RoundTo(float64(agg.Passed)/float64(agg.Total), 4)
		report.PerDomain[c.Domain] = agg

		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
	}

	if report.Total > 0 {
		report.Accuracy = domain.RoundTo(float64(report.Passed)/float64(report.Total), 4)
		report.Pass = report.Accuracy >= PassThreshold
	}
	return report, nil
}

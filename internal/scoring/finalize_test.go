package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/answerlab/go-grader/internal/domain"
)

func TestFinalize_PerfectMatch(t *testing.T) {
	f := New()

	bd := f.Finalize(1.0, 1.0, 4, 4)

	assert.InDelta(t, 1.0, bd.AdjustedSimilarity, 1e-9, "bonus caps at 1.0")
	assert.InDelta(t, 6.0, bd.FinalScore, 1e-9)
	assert.InDelta(t, 0.9, bd.Confidence, 1e-9, "base 0.7 plus high-coverage boost")
}

func TestFinalize_ConceptBonus(t *testing.T) {
	f := New()

	bd := f.Finalize(0.6, 0.5, 2, 4)

	assert.InDelta(t, 0.075, bd.ConceptBonus, 1e-9)
	assert.InDelta(t, 0.675, bd.AdjustedSimilarity, 1e-9)
	assert.InDelta(t, 4.05, bd.FinalScore, 1e-9)
}

func TestFinalize_PartialCredit(t *testing.T) {
	f := New()

	// Weak ensemble, no coverage bonus to speak of, but half the key
	// concepts are present: the partial-credit floor lifts the grade.
	bd := f.Finalize(0.1, 0.5, 2, 4)

	wantFloor := (2.0 / 4.0) * PartialCreditFactor // 0.15
	assert.InDelta(t, 0.175, bd.AdjustedSimilarity, 1e-9,
		"bonus path (0.1 + 0.075) already beats the floor %v", wantFloor)

	// With no coverage at all the floor takes over.
	bd = f.Finalize(0.05, 0.0, 3, 4)
	assert.InDelta(t, (3.0/4.0)*PartialCreditFactor, bd.AdjustedSimilarity, 1e-9)
	assert.InDelta(t, 1.35, bd.FinalScore, 1e-9)
}

func TestFinalize_PartialCreditNotAppliedAboveCutoff(t *testing.T) {
	f := New()

	bd := f.Finalize(0.55, 0.0, 4, 4)

	assert.InDelta(t, 0.55, bd.AdjustedSimilarity, 1e-9,
		"similarity at or above the cutoff keeps its value")
}

func TestFinalize_Confidence(t *testing.T) {
	f := New()

	tests := []struct {
		name     string
		ensemble float64
		coverage float64
		present  int
		total    int
		want     float64
	}{
		{name: "base only", ensemble: 0.5, coverage: 0.5, present: 2, total: 4, want: 0.7},
		{name: "high coverage", ensemble: 0.5, coverage: 0.9, present: 4, total: 4, want: 0.9},
		{name: "moderate coverage", ensemble: 0.5, coverage: 0.7, present: 3, total: 4, want: 0.8},
		{name: "weak ensemble", ensemble: 0.2, coverage: 0.5, present: 2, total: 4, want: 0.5},
		{name: "no concepts found", ensemble: 0.5, coverage: 0.0, present: 0, total: 4, want: 0.4},
		{name: "floor at minimum", ensemble: 0.2, coverage: 0.0, present: 0, total: 4, want: MinConfidence},
		{name: "no reference concepts no penalty", ensemble: 0.5, coverage: 1.0, present: 0, total: 0, want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd := f.Finalize(tt.ensemble, tt.coverage, tt.present, tt.total)
			assert.InDelta(t, tt.want, bd.Confidence, 1e-9)
		})
	}
}

func TestFinalize_BoundsAlwaysHold(t *testing.T) {
	f := New()

	inputs := []struct {
		ensemble float64
		coverage float64
		present  int
		total    int
	}{
		{0, 0, 0, 0},
		{1, 1, 10, 10},
		{0.5, 0.5, 1, 3},
		{0.99, 1.0, 5, 5},
		{0.01, 0.01, 0, 7},
	}

	for _, in := range inputs {
		bd := f.Finalize(in.ensemble, in.coverage, in.present, in.total)

		assert.GreaterOrEqual(t, bd.AdjustedSimilarity, 0.0)
		assert.LessOrEqual(t, bd.AdjustedSimilarity, 1.0)
		assert.GreaterOrEqual(t, bd.FinalScore, 0.0)
		assert.LessOrEqual(t, bd.FinalScore, domain.MaxScore)
		assert.GreaterOrEqual(t, bd.Confidence, MinConfidence)
		assert.LessOrEqual(t, bd.Confidence, 1.0)
	}
}

func TestFinalize_CoverageMonotonicity(t *testing.T) {
	f := New()

	prev := -1.0
	for _, coverage := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		bd := f.Finalize(0.5, coverage, 1, 4)
		assert.GreaterOrEqual(t, bd.AdjustedSimilarity, prev,
			"raising coverage must never lower the adjusted similarity")
		prev = bd.AdjustedSimilarity
	}
}

package dataset //nolint:testpackage // tests exercise unexported internals directly.

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAccuracy_AllCasesPass(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	expected := map[string]float64{}
	for _, caseDomain := range []string{"CSE", "ECE"} {
		c := sampleCase(caseDomain)
		c.ExpectedScore = 4.0
		added, err := s.AddCase(ctx, c)
		require.NoError(t, err)
		expected[added.ModelAnswer] = added.ExpectedScore
	}

	exact := func(_ context.Context, reference, _ string) (float64, error) {
		return expected[reference], nil
	}

	report, err := s.RunAccuracy(ctx, exact)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Zero(t, report.Failed)
	assert.InDelta(t, 1.0, report.Accuracy, 1e-9)
	assert.True(t, report.Pass)
	assert.Empty(t, report.Failures)
	assert.InDelta(t, 1.0, report.PerDomain["CSE"].Accuracy, 1e-9)
}

func TestRunAccuracy_ToleranceBoundary(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	within := sampleCase("CSE")
	within.ExpectedScore = 4.0
	within.ModelAnswer = "answer scored within tolerance"
	_, err := s.AddCase(ctx, within)
	require.NoError(t, err)

	outside := sampleCase("CSE")
	outside.ExpectedScore = 4.0
	outside.ModelAnswer = "answer scored outside tolerance"
	_, err = s.AddCase(ctx, outside)
	require.NoError(t, err)

	score := func(_ context.Context, reference, _ string) (float64, error) {
		if reference == within.ModelAnswer {
			return 5.0, nil // delta exactly at the tolerance
		}
		return 5.5, nil
	}

	report, err := s.RunAccuracy(ctx, score)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 0.5, report.Accuracy, 1e-9)
	assert.False(t, report.Pass)

	require.Len(t, report.Failures, 1)
	failure := report.Failures[0]
	assert.Equal(t, "CSE_002", failure.CaseID)
	assert.InDelta(t, 1.5, failure.Delta, 1e-9)
	assert.False(t, failure.Pass)
}

func TestRunAccuracy_ScoreErrorFailsOnlyThatCase(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	good := sampleCase("science")
	good.ModelAnswer = "a working case"
	_, err := s.AddCase(ctx, good)
	require.NoError(t, err)

	broken := sampleCase("science")
	broken.ModelAnswer = "a broken case"
	_, err = s.AddCase(ctx, broken)
	require.NoError(t, err)

	score := func(_ context.Context, reference, _ string) (float64, error) {
		if reference == broken.ModelAnswer {
			return 0, errors.New("pipeline unavailable")
		}
		return good.ExpectedScore, nil
	}

	report, err := s.RunAccuracy(ctx, score)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "pipeline unavailable", report.Failures[0].Error)
}

func TestRunAccuracy_EmptyDataset(t *testing.T) {
	s := openStore(t)

	report, err := s.RunAccuracy(context.Background(), func(context.Context, string, string) (float64, error) {
		return 0, nil
	})
	require.NoError(t, err)

	assert.Zero(t, report.Total)
	assert.Zero(t, report.Accuracy)
	assert.False(t, report.Pass, "an empty dataset cannot pass the sweep")
}

func TestRunAccuracy_HonorsContextCancellation(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.AddCase(ctx, sampleCase("CSE"))
	require.NoError(t, err)

	cancel()
	_, err = s.RunAccuracy(ctx, func(context.Context, string, string) (float64, error) {
		return 0, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

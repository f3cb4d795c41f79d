package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumind/engagement-tracker/internal/cache"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/ml"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
	"github.com/edumind/engagement-tracker/internal/types"
)

func newPredictionService(t *testing.T) (PredictionService, repos.PredictionRepo) {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	repo := repos.NewPredictionRepo(db, log)
	return NewPredictionService(db, log, repo, cache.NewNoopCache()), repo
}

func seedTimeline(t *testing.T, repo repos.PredictionRepo, studentID string, probs []float64) {
	t.Helper()
	now := time.Now().UTC().Truncate(24 * time.Hour)
	rows := make([]*types.DisengagementPrediction, 0, len(probs))
	for i, p := range probs {
		rows = append(rows, &types.DisengagementPrediction{
			ID:                    uuid.New(),
			StudentID:             studentID,
			PredictionDate:        now.AddDate(0, 0, i-len(probs)+1),
			AtRisk:                p >= 0.5,
			RiskProbability:       p,
			RiskLevel:             risk.Categorize(p),
			ModelVersion:          ml.ModelVersion,
			ConfidenceScore:       risk.Confidence(p),
			PredictionHorizonDays: 7,
			CreatedAt:             time.Now().UTC(),
		})
	}
	require.NoError(t, repo.CreateInBatches(context.Background(), nil, rows))
}

func TestGetLatestMissIsNotFound(t *testing.T) {
	svc, _ := newPredictionService(t)
	_, err := svc.GetLatest(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetLatestReturnsNewest(t *testing.T) {
	svc, repo := newPredictionService(t)
	seedTimeline(t, repo, "s1", []float64{0.2, 0.5, 0.9})

	pred, err := svc.GetLatest(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, pred.RiskProbability)
	assert.Equal(t, risk.LevelHigh, pred.RiskLevel)
}

func TestListAtRiskFiltersLevel(t *testing.T) {
	svc, repo := newPredictionService(t)
	seedPrediction(t, repo, "high", 0.9, risk.LevelHigh)
	seedPrediction(t, repo, "medium", 0.55, risk.LevelMedium)
	seedPrediction(t, repo, "safe", 0.1, risk.LevelLow)

	all, err := svc.ListAtRisk(context.Background(), 7, "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "only at-risk rows")

	high, err := svc.ListAtRisk(context.Background(), 7, risk.LevelHigh)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "high", high[0].StudentID)

	_, err = svc.ListAtRisk(context.Background(), 7, "Catastrophic")
	require.Error(t, err)
}

func TestGetStatistics(t *testing.T) {
	svc, repo := newPredictionService(t)
	seedPrediction(t, repo, "a", 0.9, risk.LevelHigh)
	seedPrediction(t, repo, "b", 0.6, risk.LevelMedium)
	seedPrediction(t, repo, "c", 0.1, risk.LevelLow)

	stats, err := svc.GetStatistics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 2, stats.AtRiskCount)
	assert.InDelta(t, 2.0/3.0, stats.AtRiskRate, 1e-9)
	assert.Equal(t, 1, stats.ByLevel[risk.LevelHigh])
	assert.Equal(t, 1, stats.ByLevel[risk.LevelMedium])
	assert.Equal(t, 1, stats.ByLevel[risk.LevelLow])
	assert.Equal(t, ml.ModelVersion, stats.ModelVersion)
	require.NotNil(t, stats.LastCycleAt)
}

func TestStatisticsCountStudentsOnceAcrossTimelines(t *testing.T) {
	svc, repo := newPredictionService(t)
	// Day-by-day timelines: "worsening" crossed into risk on the last day,
	// "recovered" dropped back out of it.
	seedTimeline(t, repo, "worsening", []float64{0.2, 0.6, 0.9})
	seedTimeline(t, repo, "recovered", []float64{0.9, 0.6, 0.2})

	stats, err := svc.GetStatistics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalStudents)
	assert.Equal(t, 1, stats.AtRiskCount)
	assert.Equal(t, 1, stats.ByLevel[risk.LevelHigh])
	assert.Equal(t, 1, stats.ByLevel[risk.LevelLow])

	// Both students had at-risk days in the window, but each shows up
	// exactly once, at their newest at-risk row.
	atRisk, err := svc.ListAtRisk(context.Background(), 7, "")
	require.NoError(t, err)
	require.Len(t, atRisk, 2)
	byStudent := map[string]float64{}
	for _, pred := range atRisk {
		byStudent[pred.StudentID] = pred.RiskProbability
	}
	assert.Equal(t, 0.9, byStudent["worsening"])
	assert.Equal(t, 0.6, byStudent["recovered"])
}

func TestGetStatisticsEmptyTable(t *testing.T) {
	svc, _ := newPredictionService(t)
	stats, err := svc.GetStatistics(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalStudents)
	assert.Nil(t, stats.LastCycleAt)
}

func TestGetTrajectoryDirection(t *testing.T) {
	cases := []struct {
		name  string
		probs []float64
		want  string
	}{
		{"rising", []float64{0.2, 0.4, 0.6}, "rising"},
		{"falling", []float64{0.8, 0.5, 0.3}, "falling"},
		{"stable within band", []float64{0.50, 0.52, 0.54}, "stable"},
		{"single point", []float64{0.9}, "stable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newPredictionService(t)
			seedTimeline(t, repo, "s1", tc.probs)

			traj, err := svc.GetTrajectory(context.Background(), "s1", 30)
			require.NoError(t, err)
			assert.Len(t, traj.Points, len(tc.probs))
			assert.Equal(t, tc.want, traj.Direction)
		})
	}
}

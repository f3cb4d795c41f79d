package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func scoreRecord(studentID string, n int, composite float64) *types.EngagementScore {
	return &types.EngagementScore{
		StudentID:        studentID,
		Date:             day(n),
		LoginScore:       composite,
		SessionScore:     composite,
		InteractionScore: composite,
		ForumScore:       composite,
		AssignmentScore:  composite,
		EngagementScore:  composite,
	}
}

func TestBuildSortsWithinStudentBeforeWindowing(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	// Out of order on purpose: lags must follow date order, not input order.
	records := []*types.EngagementScore{
		scoreRecord("s1", 2, 70),
		scoreRecord("s1", 0, 50),
		scoreRecord("s1", 1, 60),
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 3)
	assert.Equal(t, 0, set.Skipped)

	assert.Nil(t, set.Rows[0].Lag1)
	require.NotNil(t, set.Rows[1].Lag1)
	assert.Equal(t, 50.0, *set.Rows[1].Lag1)
	require.NotNil(t, set.Rows[2].Lag1)
	assert.Equal(t, 60.0, *set.Rows[2].Lag1)
	assert.Equal(t, 1, set.Rows[0].DaysSinceStart)
	assert.Equal(t, 3, set.Rows[2].DaysSinceStart)
}

func TestLagsNeverCrossStudents(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	records := []*types.EngagementScore{
		scoreRecord("a", 0, 90),
		scoreRecord("a", 1, 91),
		scoreRecord("b", 0, 10),
		scoreRecord("b", 1, 11),
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 4)

	for _, row := range set.Rows {
		if row.DaysSinceStart == 1 {
			assert.Nil(t, row.Lag1, "first row of %s must have no lag", row.StudentID)
			continue
		}
		require.NotNil(t, row.Lag1)
		if row.StudentID == "b" {
			assert.Equal(t, 10.0, *row.Lag1)
		}
	}
}

func TestLagHorizons(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	records := make([]*types.EngagementScore, 0, 15)
	for i := 0; i < 15; i++ {
		records = append(records, scoreRecord("s1", i, float64(50+i)))
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 15)

	last := set.Rows[14]
	require.NotNil(t, last.Lag1)
	require.NotNil(t, last.Lag3)
	require.NotNil(t, last.Lag7)
	require.NotNil(t, last.Lag14)
	assert.Equal(t, 63.0, *last.Lag1)
	assert.Equal(t, 61.0, *last.Lag3)
	assert.Equal(t, 57.0, *last.Lag7)
	assert.Equal(t, 50.0, *last.Lag14)

	// One short of the 14-day horizon.
	assert.Nil(t, set.Rows[13].Lag14)
	require.NotNil(t, set.Rows[13].Lag7)
}

func TestConsecutiveLowDaysStreak(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	composites := []float64{25, 30, 35, 45, 20, 39.9, 40, 10}
	records := make([]*types.EngagementScore, 0, len(composites))
	for i, c := range composites {
		records = append(records, scoreRecord("s1", i, c))
	}
	set := e.Build(records)
	require.Len(t, set.Rows, len(composites))

	want := []int{1, 2, 3, 0, 1, 2, 0, 1}
	for i, row := range set.Rows {
		assert.Equal(t, want[i], row.ConsecutiveLowDays, "day %d", i)
	}
}

func TestVolatilityWindowOfOneIsZero(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	set := e.Build([]*types.EngagementScore{scoreRecord("s1", 0, 55)})
	require.Len(t, set.Rows, 1)
	assert.Equal(t, 0.0, set.Rows[0].Volatility7)
}

func TestOscillatingScoresStayOffTheStreak(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	records := make([]*types.EngagementScore, 0, 14)
	for i := 0; i < 14; i++ {
		composite := 80.0
		if i%2 == 1 {
			composite = 85.0
		}
		records = append(records, scoreRecord("s1", i, composite))
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 14)

	for i, row := range set.Rows {
		assert.Equal(t, 0, row.ConsecutiveLowDays, "day %d", i)
	}
	last := set.Rows[13]
	assert.Greater(t, last.Volatility7, 2.0)
	assert.Less(t, last.Volatility7, 3.0)
}

func TestSmoothedActivityRatios(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	rec := scoreRecord("s1", 0, 50)
	rec.LoginScore = 80
	rec.SessionScore = 39
	rec.InteractionScore = 60
	rec.ForumScore = 0
	set := e.Build([]*types.EngagementScore{rec})
	require.Len(t, set.Rows, 1)

	assert.InDelta(t, 2.0, set.Rows[0].LoginToSessionRatio, 1e-9)
	assert.InDelta(t, 60.0, set.Rows[0].InteractionToForumRatio, 1e-9)
}

func TestTrendOneHot(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	declining := types.TrendDeclining
	improving := types.TrendImproving
	r1 := scoreRecord("s1", 0, 50)
	r1.EngagementTrend = &declining
	r2 := scoreRecord("s1", 1, 50)
	r2.EngagementTrend = &improving
	r3 := scoreRecord("s1", 2, 50)

	set := e.Build([]*types.EngagementScore{r1, r2, r3})
	require.Len(t, set.Rows, 3)

	assert.Equal(t, 1.0, set.Rows[0].IsDeclining)
	assert.Equal(t, 0.0, set.Rows[0].IsImproving)
	assert.Equal(t, 1.0, set.Rows[1].IsImproving)
	assert.Equal(t, 0.0, set.Rows[2].IsDeclining)
	assert.Equal(t, 0.0, set.Rows[2].IsImproving)
	assert.Equal(t, 0.0, set.Rows[2].IsStable)
}

func TestTrainingEligibility(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	avg := 50.0
	records := make([]*types.EngagementScore, 0, 9)
	for i := 0; i < 9; i++ {
		rec := scoreRecord("s1", i, 50)
		rec.RollingAvg7Days = &avg
		records = append(records, rec)
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 9)

	eligible := 0
	for _, row := range set.Rows {
		if row.TrainingEligible() {
			eligible++
		}
	}
	// Rows 0..6 have no 7-step lag yet.
	assert.Equal(t, 2, eligible)
}

func TestTrainingEligibilityRequiresRollingAvg(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	records := make([]*types.EngagementScore, 0, 8)
	for i := 0; i < 8; i++ {
		records = append(records, scoreRecord("s1", i, 50))
	}
	set := e.Build(records)
	require.Len(t, set.Rows, 8)

	last := set.Rows[7]
	require.NotNil(t, last.Lag7)
	assert.False(t, last.TrainingEligible())
}

func TestVectorMatchesCanonicalOrder(t *testing.T) {
	require.Len(t, FeatureNames, NumFeatures)

	avg7, avg30 := 42.5, 47.5
	row := &Row{
		StudentID:          "s1",
		EngagementScore:    33,
		RollingAvg7:        &avg7,
		RollingAvg30:       &avg30,
		ConsecutiveLowDays: 4,
		DaysSinceStart:     9,
	}
	vec := row.Vector()
	require.Len(t, vec, NumFeatures)

	m := row.FeatureMap()
	assert.Equal(t, 33.0, m["engagement_score"])
	assert.Equal(t, 42.5, m["rolling_avg_7days"])
	assert.Equal(t, 47.5, m["rolling_avg_30days"])
	assert.Equal(t, 4.0, m["consecutive_low_days"])
	assert.Equal(t, 9.0, m["days_since_start"])

	// Missing lags impute to zero at vector time.
	assert.Equal(t, 0.0, m["engagement_score_lag_7days"])
}

func TestMalformedRecordsAreSkippedNotFatal(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	bad := scoreRecord("s1", 1, 50)
	bad.EngagementScore = 140
	noStudent := scoreRecord("", 2, 50)

	set := e.Build([]*types.EngagementScore{
		scoreRecord("s1", 0, 50),
		bad,
		nil,
		noStudent,
		scoreRecord("s1", 3, 60),
	})
	assert.Equal(t, 3, set.Skipped)
	require.Len(t, set.Rows, 2)

	// The skipped day collapses out of the series: lag is the prior
	// surviving observation.
	require.NotNil(t, set.Rows[1].Lag1)
	assert.Equal(t, 50.0, *set.Rows[1].Lag1)
}

func TestLatestPerStudent(t *testing.T) {
	e := NewEngineer(logger.NewNop())

	set := e.Build([]*types.EngagementScore{
		scoreRecord("a", 0, 50),
		scoreRecord("a", 5, 70),
		scoreRecord("b", 2, 20),
	})
	latest := set.LatestPerStudent()
	require.Len(t, latest, 2)
	assert.Equal(t, 70.0, latest["a"].EngagementScore)
	assert.Equal(t, 20.0, latest["b"].EngagementScore)
}

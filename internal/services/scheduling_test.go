package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumind/engagement-tracker/internal/features"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
	"github.com/edumind/engagement-tracker/internal/types"
)

func monday() time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
}

func TestBuildWeeklyPlanByRiskLevel(t *testing.T) {
	row := &features.Row{AssignmentScore: 80}

	cases := []struct {
		name       string
		riskLevel  string
		wantLength int
		wantPerDay int
		wantLoad   float64
	}{
		{"high risk", risk.LevelHigh, 20, 4, 0.6},
		{"medium risk", risk.LevelMedium, 35, 3, 0.8},
		{"low risk", risk.LevelLow, 50, 2, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			length, perDay, load, plan := buildWeeklyPlan(row, tc.riskLevel, monday())
			assert.Equal(t, tc.wantLength, length)
			assert.Equal(t, tc.wantPerDay, perDay)
			assert.Equal(t, tc.wantLoad, load)
			assert.Len(t, plan.Days, 7)
			assert.NotEmpty(t, plan.Reasoning)
		})
	}
}

func TestBuildWeeklyPlanRespectsBounds(t *testing.T) {
	// Every aggravating signal at once must still land inside the bounds.
	row := &features.Row{
		Volatility7:        40,
		IsDeclining:        1,
		ConsecutiveLowDays: 12,
		AssignmentScore:    10,
	}
	length, perDay, load, _ := buildWeeklyPlan(row, risk.LevelHigh, monday())
	assert.GreaterOrEqual(t, length, minSessionMinutes)
	assert.LessOrEqual(t, length, maxSessionMinutes)
	assert.GreaterOrEqual(t, perDay, minSessionsPerDay)
	assert.LessOrEqual(t, perDay, maxSessionsPerDay)
	assert.GreaterOrEqual(t, load, minLoadReduction)
	assert.LessOrEqual(t, load, maxLoadReduction)
}

func TestBuildWeeklyPlanLightDay(t *testing.T) {
	row := &features.Row{AssignmentScore: 80}
	_, _, _, plan := buildWeeklyPlan(row, risk.LevelHigh, monday())

	lightDays := 0
	for _, day := range plan.Days {
		if day.LightDay {
			lightDays++
			assert.Equal(t, "Sunday", day.DayName)
			assert.Len(t, day.Sessions, 1)
		}
	}
	assert.Equal(t, 1, lightDays, "reduced-load week keeps exactly one light day")

	// Full-load weeks have no light day.
	_, _, _, plan = buildWeeklyPlan(row, risk.LevelLow, monday())
	for _, day := range plan.Days {
		assert.False(t, day.LightDay)
	}
}

func TestBuildWeeklyPlanFrontLoadsAssignments(t *testing.T) {
	row := &features.Row{AssignmentScore: 20}
	_, _, _, plan := buildWeeklyPlan(row, risk.LevelMedium, monday())

	for d, day := range plan.Days {
		for _, session := range day.Sessions {
			if d < 2 {
				assert.Equal(t, "assignment_catchup", session.Focus)
			} else {
				assert.NotEqual(t, "assignment_catchup", session.Focus)
			}
		}
	}
}

func TestGenerateWeeklyPersistsAndOverwrites(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	scoreRepo := repos.NewEngagementScoreRepo(db, log)
	predRepo := repos.NewPredictionRepo(db, log)
	scheduleRepo := repos.NewStudyScheduleRepo(db, log)
	svc := NewSchedulingService(db, log, scoreRepo, predRepo, scheduleRepo)
	ctx := context.Background()

	seedScores(t, scoreRepo, "s1", 14, 20)
	seedPrediction(t, predRepo, "s1", 0.85, risk.LevelHigh)

	schedule, err := svc.GenerateWeekly(ctx, "s1", monday())
	require.NoError(t, err)
	assert.Equal(t, 20, schedule.SessionLengthMinutes)
	assert.Equal(t, monday().AddDate(0, 0, 6), schedule.WeekEndDate)
	assert.InDelta(t, 0.5, schedule.LoadReductionFactor, 1e-9,
		"high risk with declining-streak penalties bottoms out at the clamp")

	var plan WeeklyPlan
	require.NoError(t, json.Unmarshal(schedule.DailySchedules, &plan))
	assert.Len(t, plan.Days, 7)

	var snapshot map[string]float64
	require.NoError(t, json.Unmarshal(schedule.FeaturesUsed, &snapshot))
	assert.Contains(t, snapshot, "consecutive_low_days")

	// Regeneration upserts instead of duplicating.
	again, err := svc.GenerateWeekly(ctx, "s1", monday())
	require.NoError(t, err)
	stored, err := svc.GetWeek(ctx, "s1", monday())
	require.NoError(t, err)
	assert.Equal(t, again.SessionLengthMinutes, stored.SessionLengthMinutes)

	var count int64
	require.NoError(t, db.Model(&types.StudySchedule{}).Where("student_id = ?", "s1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGenerateWeeklyWithoutPredictionAssumesLowRisk(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	scoreRepo := repos.NewEngagementScoreRepo(db, log)
	svc := NewSchedulingService(db, log, scoreRepo, repos.NewPredictionRepo(db, log), repos.NewStudyScheduleRepo(db, log))

	seedScores(t, scoreRepo, "fresh", 10, 85)
	schedule, err := svc.GenerateWeekly(context.Background(), "fresh", monday())
	require.NoError(t, err)
	assert.Equal(t, 50, schedule.SessionLengthMinutes)
	assert.Equal(t, 1.0, schedule.LoadReductionFactor)
}

func TestDeleteWeek(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	scoreRepo := repos.NewEngagementScoreRepo(db, log)
	svc := NewSchedulingService(db, log, scoreRepo, repos.NewPredictionRepo(db, log), repos.NewStudyScheduleRepo(db, log))
	ctx := context.Background()

	seedScores(t, scoreRepo, "s1", 14, 70)
	_, err := svc.GenerateWeekly(ctx, "s1", monday())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteWeek(ctx, "s1", monday()))
	_, err = svc.GetWeek(ctx, "s1", monday())
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteWeek(ctx, "s1", monday())
	require.ErrorIs(t, err, ErrNotFound, "deleting a deleted week is a miss")
}

func TestGenerateWeeklyUnknownStudent(t *testing.T) {
	db := newTestDB(t)
	log := logger.NewNop()
	svc := NewSchedulingService(db, log,
		repos.NewEngagementScoreRepo(db, log),
		repos.NewPredictionRepo(db, log),
		repos.NewStudyScheduleRepo(db, log))

	_, err := svc.GenerateWeekly(context.Background(), "ghost", monday())
	require.ErrorIs(t, err, ErrNotFound)
}

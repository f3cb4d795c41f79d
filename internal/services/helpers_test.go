package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edumind/engagement-tracker/internal/ml"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.StudentActivityEvent{},
		&types.DailyEngagementMetric{},
		&types.EngagementScore{},
		&types.DisengagementPrediction{},
		&types.StudySchedule{},
		&types.InterventionLog{},
	))
	return db
}

// seedScores writes numDays of daily scores near base with a little
// deterministic jitter.
func seedScores(t *testing.T, repo repos.EngagementScoreRepo, studentID string, numDays int, base float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(len(studentID))))
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]*types.EngagementScore, 0, numDays)
	for d := 0; d < numDays; d++ {
		score := base + rng.Float64()*4 - 2
		if score < 0 {
			score = 0
		}
		avg := score
		rows = append(rows, &types.EngagementScore{
			ID:               uuid.New(),
			StudentID:        studentID,
			Date:             start.AddDate(0, 0, d),
			LoginScore:       score,
			SessionScore:     score,
			InteractionScore: score,
			ForumScore:       score,
			AssignmentScore:  score,
			EngagementScore:  score,
			EngagementLevel:  types.LevelMedium,
			RollingAvg7Days:  &avg,
			RollingAvg30Days: &avg,
			CreatedAt:        time.Now().UTC(),
		})
	}
	_, err := repo.Create(context.Background(), nil, rows)
	require.NoError(t, err)
}

func seedPrediction(t *testing.T, repo repos.PredictionRepo, studentID string, probability float64, level string) *types.DisengagementPrediction {
	t.Helper()
	pred := &types.DisengagementPrediction{
		ID:                    uuid.New(),
		StudentID:             studentID,
		PredictionDate:        time.Now().UTC().Truncate(24 * time.Hour),
		AtRisk:                probability >= 0.5,
		RiskProbability:       probability,
		RiskLevel:             level,
		ModelVersion:          ml.ModelVersion,
		ModelType:             ml.ModelType,
		ConfidenceScore:       probability,
		PredictionHorizonDays: 7,
		CreatedAt:             time.Now().UTC(),
	}
	require.NoError(t, repo.CreateInBatches(context.Background(), nil, []*types.DisengagementPrediction{pred}))
	return pred
}

package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type DailyMetricRepo interface {
	Create(ctx context.Context, tx *gorm.DB, metrics []*types.DailyEngagementMetric) ([]*types.DailyEngagementMetric, error)
	ListByStudentRange(ctx context.Context, tx *gorm.DB, studentID string, from, to time.Time) ([]*types.DailyEngagementMetric, error)
}

type dailyMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyMetricRepo(db *gorm.DB, baseLog *logger.Logger) DailyMetricRepo {
	repoLog := baseLog.With("repo", "DailyMetricRepo")
	return &dailyMetricRepo{db: db, log: repoLog}
}

func (r *dailyMetricRepo) Create(ctx context.Context, tx *gorm.DB, metrics []*types.DailyEngagementMetric) ([]*types.DailyEngagementMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(metrics) == 0 {
		return []*types.DailyEngagementMetric{}, nil
	}
	if err := transaction.WithContext(ctx).CreateInBatches(&metrics, 500).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

func (r *dailyMetricRepo) ListByStudentRange(ctx context.Context, tx *gorm.DB, studentID string, from, to time.Time) ([]*types.DailyEngagementMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DailyEngagementMetric
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND date >= ? AND date <= ?", studentID, from, to).
		Order("date").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

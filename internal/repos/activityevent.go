package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type ActivityEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, events []*types.StudentActivityEvent) ([]*types.StudentActivityEvent, error)
	ListByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) ([]*types.StudentActivityEvent, error)
	CountByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) (int64, error)
}

type activityEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	repoLog := baseLog.With("repo", "ActivityEventRepo")
	return &activityEventRepo{db: db, log: repoLog}
}

func (r *activityEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.StudentActivityEvent) ([]*types.StudentActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return []*types.StudentActivityEvent{}, nil
	}
	if err := transaction.WithContext(ctx).CreateInBatches(&events, 1000).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *activityEventRepo) ListByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) ([]*types.StudentActivityEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StudentActivityEvent
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND event_timestamp >= ?", studentID, since).
		Order("event_timestamp").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *activityEventRepo) CountByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.StudentActivityEvent{}).
		Where("student_id = ? AND event_timestamp >= ?", studentID, since).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

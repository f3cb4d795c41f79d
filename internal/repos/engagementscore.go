package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type EngagementScoreRepo interface {
	Create(ctx context.Context, tx *gorm.DB, scores []*types.EngagementScore) ([]*types.EngagementScore, error)
	// ListAllOrdered returns the full history ordered by (student_id, date),
	// the ordering every windowed feature computation depends on.
	ListAllOrdered(ctx context.Context, tx *gorm.DB) ([]*types.EngagementScore, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.EngagementScore, error)
	LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.EngagementScore, error)
	GetByStudentAndDate(ctx context.Context, tx *gorm.DB, studentID string, date time.Time) (*types.EngagementScore, error)
}

type engagementScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementScoreRepo(db *gorm.DB, baseLog *logger.Logger) EngagementScoreRepo {
	repoLog := baseLog.With("repo", "EngagementScoreRepo")
	return &engagementScoreRepo{db: db, log: repoLog}
}

func (r *engagementScoreRepo) Create(ctx context.Context, tx *gorm.DB, scores []*types.EngagementScore) ([]*types.EngagementScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(scores) == 0 {
		return []*types.EngagementScore{}, nil
	}
	if err := transaction.WithContext(ctx).CreateInBatches(&scores, 500).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *engagementScoreRepo) ListAllOrdered(ctx context.Context, tx *gorm.DB) ([]*types.EngagementScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.EngagementScore
	if err := transaction.WithContext(ctx).
		Order("student_id, date").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *engagementScoreRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.EngagementScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.EngagementScore
	if studentID == "" {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *engagementScoreRepo) LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.EngagementScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.EngagementScore
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *engagementScoreRepo) GetByStudentAndDate(ctx context.Context, tx *gorm.DB, studentID string, date time.Time) (*types.EngagementScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.EngagementScore
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND date = ?", studentID, date).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

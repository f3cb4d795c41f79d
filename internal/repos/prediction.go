package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type PredictionRepo interface {
	// DeleteAll and CreateInBatches are the two halves of the
	// clear-then-bulk-insert replace; the caller owns the transaction that
	// makes the pair atomic.
	DeleteAll(ctx context.Context, tx *gorm.DB) error
	CreateInBatches(ctx context.Context, tx *gorm.DB, rows []*types.DisengagementPrediction) error
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.DisengagementPrediction, error)
	HistoryByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.DisengagementPrediction, error)
	ListAtRiskSince(ctx context.Context, tx *gorm.DB, since time.Time, riskLevel string) ([]*types.DisengagementPrediction, error)
	ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.DisengagementPrediction, error)
	ListByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) ([]*types.DisengagementPrediction, error)
	LatestCreated(ctx context.Context, tx *gorm.DB) (*types.DisengagementPrediction, error)
}

type predictionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPredictionRepo(db *gorm.DB, baseLog *logger.Logger) PredictionRepo {
	repoLog := baseLog.With("repo", "PredictionRepo")
	return &predictionRepo{db: db, log: repoLog}
}

func (r *predictionRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("1 = 1").
		Delete(&types.DisengagementPrediction{}).Error
}

func (r *predictionRepo) CreateInBatches(ctx context.Context, tx *gorm.DB, rows []*types.DisengagementPrediction) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

func (r *predictionRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.DisengagementPrediction{}).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *predictionRepo) LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.DisengagementPrediction
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("prediction_date DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *predictionRepo) HistoryByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DisengagementPrediction
	q := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("prediction_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *predictionRepo) ListAtRiskSince(ctx context.Context, tx *gorm.DB, since time.Time, riskLevel string) ([]*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DisengagementPrediction
	q := transaction.WithContext(ctx).
		Where("at_risk = ? AND prediction_date >= ?", true, since)
	if riskLevel != "" {
		q = q.Where("risk_level = ?", riskLevel)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *predictionRepo) ListSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DisengagementPrediction
	if err := transaction.WithContext(ctx).
		Where("prediction_date >= ?", since).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *predictionRepo) ListByStudentSince(ctx context.Context, tx *gorm.DB, studentID string, since time.Time) ([]*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DisengagementPrediction
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND prediction_date >= ?", studentID, since).
		Order("prediction_date").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *predictionRepo) LatestCreated(ctx context.Context, tx *gorm.DB) (*types.DisengagementPrediction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.DisengagementPrediction
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

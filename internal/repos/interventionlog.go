package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type InterventionLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.InterventionLog) error
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.InterventionLog, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InterventionLog, error)
	HasPending(ctx context.Context, tx *gorm.DB, studentID, interventionType string) (bool, error)
	MarkDelivered(ctx context.Context, tx *gorm.DB, id uuid.UUID, deliveredAt time.Time) error
}

type interventionLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInterventionLogRepo(db *gorm.DB, baseLog *logger.Logger) InterventionLogRepo {
	repoLog := baseLog.With("repo", "InterventionLogRepo")
	return &interventionLogRepo{db: db, log: repoLog}
}

func (r *interventionLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.InterventionLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *interventionLogRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit int) ([]*types.InterventionLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.InterventionLog
	q := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *interventionLogRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InterventionLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.InterventionLog
	if err := transaction.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *interventionLogRepo) HasPending(ctx context.Context, tx *gorm.DB, studentID, interventionType string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.InterventionLog{}).
		Where("student_id = ? AND intervention_type = ? AND status = ?", studentID, interventionType, "pending").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *interventionLogRepo) MarkDelivered(ctx context.Context, tx *gorm.DB, id uuid.UUID, deliveredAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	result := transaction.WithContext(ctx).
		Model(&types.InterventionLog{}).
		Where("id = ? AND status = ?", id, "pending").
		Updates(map[string]any{"status": "delivered", "delivered_at": deliveredAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

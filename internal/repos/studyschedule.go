package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

type StudyScheduleRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, schedule *types.StudySchedule) error
	GetByStudentAndWeek(ctx context.Context, tx *gorm.DB, studentID string, weekStart time.Time) (*types.StudySchedule, error)
	LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.StudySchedule, error)
	DeleteByStudentAndWeek(ctx context.Context, tx *gorm.DB, studentID string, weekStart time.Time) error
}

type studyScheduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyScheduleRepo(db *gorm.DB, baseLog *logger.Logger) StudyScheduleRepo {
	repoLog := baseLog.With("repo", "StudyScheduleRepo")
	return &studyScheduleRepo{db: db, log: repoLog}
}

func (r *studyScheduleRepo) Upsert(ctx context.Context, tx *gorm.DB, schedule *types.StudySchedule) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "week_start_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"week_end_date", "session_length_minutes", "sessions_per_day",
				"total_study_minutes_per_day", "load_reduction_factor",
				"features_used", "daily_schedules", "updated_at",
			}),
		}).
		Create(schedule).Error
}

func (r *studyScheduleRepo) GetByStudentAndWeek(ctx context.Context, tx *gorm.DB, studentID string, weekStart time.Time) (*types.StudySchedule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.StudySchedule
	if err := transaction.WithContext(ctx).
		Where("student_id = ? AND week_start_date = ?", studentID, weekStart).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *studyScheduleRepo) LatestByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*types.StudySchedule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.StudySchedule
	if err := transaction.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("week_start_date DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *studyScheduleRepo) DeleteByStudentAndWeek(ctx context.Context, tx *gorm.DB, studentID string, weekStart time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("student_id = ? AND week_start_date = ?", studentID, weekStart).
		Delete(&types.StudySchedule{}).Error
}

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudySchedule is a generated weekly study plan derived from the latest
// engagement feature row of a student.
type StudySchedule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID string    `gorm:"size:50;not null;index:idx_schedule_student_week,unique" json:"student_id"`

	WeekStartDate time.Time `gorm:"type:date;not null;index:idx_schedule_student_week,unique" json:"week_start_date"`
	WeekEndDate   time.Time `gorm:"type:date;not null" json:"week_end_date"`

	SessionLengthMinutes    int `gorm:"not null" json:"session_length_minutes"`
	SessionsPerDay          int `gorm:"not null" json:"sessions_per_day"`
	TotalStudyMinutesPerDay int `gorm:"not null" json:"total_study_minutes_per_day"`

	// 0.5-1.0, applied when the engagement trend is declining.
	LoadReductionFactor float64 `gorm:"default:1.0" json:"load_reduction_factor"`

	FeaturesUsed   datatypes.JSON `gorm:"type:jsonb" json:"features_used,omitempty"`
	DailySchedules datatypes.JSON `gorm:"type:jsonb;not null" json:"daily_schedules"`

	GenerationMethod string    `gorm:"size:50;default:engagement_based" json:"generation_method"`
	Version          string    `gorm:"size:10;default:v1.0" json:"version"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (StudySchedule) TableName() string { return "study_schedules" }

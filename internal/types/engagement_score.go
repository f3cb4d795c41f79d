package types

import (
	"time"

	"github.com/google/uuid"
)

// Engagement level and trend labels produced by the upstream scoring job.
const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"

	TrendImproving = "Improving"
	TrendStable    = "Stable"
	TrendDeclining = "Declining"
)

// EngagementScore is the composite daily engagement record for one student.
// At most one row per (student_id, date); rows are append-only — the scoring
// job writes them, the risk pipeline only reads.
type EngagementScore struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID string    `gorm:"size:50;not null;index:idx_score_student_date,unique" json:"student_id"`
	Date      time.Time `gorm:"type:date;not null;index:idx_score_student_date,unique" json:"date"`

	// Component scores, 0-100.
	LoginScore       float64 `gorm:"not null" json:"login_score"`
	SessionScore     float64 `gorm:"not null" json:"session_score"`
	InteractionScore float64 `gorm:"not null" json:"interaction_score"`
	ForumScore       float64 `gorm:"not null" json:"forum_score"`
	AssignmentScore  float64 `gorm:"not null" json:"assignment_score"`

	// Weighted composite, 0-100.
	EngagementScore float64 `gorm:"not null" json:"engagement_score"`
	EngagementLevel string  `gorm:"size:20;not null" json:"engagement_level"`

	// Trend analysis written by the upstream job; nullable during burn-in.
	EngagementScoreLag1Day  *float64 `json:"engagement_score_lag_1day,omitempty"`
	EngagementScoreLag7Days *float64 `json:"engagement_score_lag_7days,omitempty"`
	EngagementChange        *float64 `json:"engagement_change,omitempty"`
	EngagementTrend         *string  `gorm:"size:20" json:"engagement_trend,omitempty"`
	RollingAvg7Days         *float64 `json:"rolling_avg_7days,omitempty"`
	RollingAvg30Days        *float64 `json:"rolling_avg_30days,omitempty"`

	CalculationVersion string    `gorm:"size:10;default:v1.0" json:"calculation_version"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

func (EngagementScore) TableName() string { return "engagement_scores" }

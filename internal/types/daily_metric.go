package types

import (
	"time"

	"github.com/google/uuid"
)

// DailyEngagementMetric holds per-student per-day aggregates pre-computed
// from the raw activity events.
type DailyEngagementMetric struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID string    `gorm:"size:50;not null;index:idx_metric_student_date,unique" json:"student_id"`
	Date      time.Time `gorm:"type:date;not null;index:idx_metric_student_date,unique" json:"date"`

	LoginCount                  int     `gorm:"not null;default:0" json:"login_count"`
	TotalSessions               int     `gorm:"not null;default:0" json:"total_sessions"`
	TotalSessionDurationMinutes float64 `gorm:"not null;default:0" json:"total_session_duration_minutes"`
	AvgSessionDurationMinutes   float64 `gorm:"not null;default:0" json:"avg_session_duration_minutes"`

	PageViews           int     `gorm:"not null;default:0" json:"page_views"`
	ContentInteractions int     `gorm:"not null;default:0" json:"content_interactions"`
	VideoPlays          int     `gorm:"not null;default:0" json:"video_plays"`
	VideoWatchMinutes   float64 `gorm:"not null;default:0" json:"video_watch_minutes"`
	ResourceDownloads   int     `gorm:"not null;default:0" json:"resource_downloads"`

	ForumPosts   int `gorm:"not null;default:0" json:"forum_posts"`
	ForumReplies int `gorm:"not null;default:0" json:"forum_replies"`

	QuizAttempts         int      `gorm:"not null;default:0" json:"quiz_attempts"`
	QuizScoreAvg         *float64 `json:"quiz_score_avg,omitempty"`
	AssignmentsSubmitted int      `gorm:"not null;default:0" json:"assignments_submitted"`
	AssignmentsOnTime    int      `gorm:"not null;default:0" json:"assignments_on_time"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DailyEngagementMetric) TableName() string { return "daily_engagement_metrics" }

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudentActivityEvent is one raw interaction captured from the learning
// platform. High volume; scores are derived from these by the daily
// aggregation job, never read directly by the risk pipeline.
type StudentActivityEvent struct {
	EventID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"event_id"`
	StudentID      string         `gorm:"size:50;not null;index" json:"student_id"`
	EventType      string         `gorm:"size:50;not null;index" json:"event_type"`
	EventTimestamp time.Time      `gorm:"not null;index" json:"event_timestamp"`
	SessionID      *string        `gorm:"size:100" json:"session_id,omitempty"`
	EventData      datatypes.JSON `gorm:"type:jsonb;column:event_data" json:"event_data,omitempty"`
	SourceService  string         `gorm:"size:50" json:"source_service,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (StudentActivityEvent) TableName() string { return "student_activity_events" }

// Known event types accepted by the ingest endpoint.
var ValidEventTypes = map[string]struct{}{
	"login": {}, "logout": {}, "page_view": {}, "video_play": {},
	"video_complete": {}, "quiz_start": {}, "quiz_submit": {},
	"assignment_submit": {}, "forum_post": {}, "forum_reply": {},
	"resource_download": {}, "content_interaction": {},
}

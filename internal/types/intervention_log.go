package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	InterventionStatusPending   = "pending"
	InterventionStatusDelivered = "delivered"
)

// ValidInterventionTypes enumerates the outreach channels the platform can
// actually act on.
var ValidInterventionTypes = map[string]struct{}{
	"advisor_outreach": {}, "motivational_nudge": {},
	"study_plan_adjustment": {}, "check_in": {},
}

// InterventionLog records an intervention triggered from a prediction.
type InterventionLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    string     `gorm:"size:50;not null;index" json:"student_id"`
	PredictionID *uuid.UUID `gorm:"type:uuid;index" json:"prediction_id,omitempty"`

	InterventionType    string `gorm:"size:50;not null" json:"intervention_type"`
	InterventionTitle   string `gorm:"size:200" json:"intervention_title,omitempty"`
	InterventionContent string `gorm:"type:text" json:"intervention_content,omitempty"`

	Status      string     `gorm:"size:20;not null;default:pending" json:"status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`

	TriggeredBy string    `gorm:"size:50;default:system" json:"triggered_by"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (InterventionLog) TableName() string { return "intervention_logs" }

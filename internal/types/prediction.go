package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DisengagementPrediction is one model output row per (student, date).
// The whole table is replaced atomically on every training cycle, so an
// empty result set during regeneration is transient, not authoritative.
type DisengagementPrediction struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID      string    `gorm:"size:50;not null;index" json:"student_id"`
	PredictionDate time.Time `gorm:"type:date;not null;index" json:"prediction_date"`

	AtRisk          bool    `gorm:"not null" json:"at_risk"`
	RiskProbability float64 `gorm:"not null" json:"risk_probability"`
	RiskLevel       string  `gorm:"size:20;not null" json:"risk_level"`

	// Rule-based flags and model-level importance ranking. The two are
	// independent signal sources and are allowed to disagree.
	ContributingFactors datatypes.JSON `gorm:"type:jsonb" json:"contributing_factors,omitempty"`
	FeatureImportance   datatypes.JSON `gorm:"type:jsonb" json:"feature_importance,omitempty"`

	ModelVersion    string  `gorm:"size:50;not null" json:"model_version"`
	ModelType       string  `gorm:"size:50" json:"model_type,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`

	PredictionHorizonDays int       `gorm:"default:7" json:"prediction_horizon_days"`
	CreatedAt             time.Time `gorm:"not null" json:"created_at"`
}

func (DisengagementPrediction) TableName() string { return "disengagement_predictions" }

// FeatureWeight is one entry of the model-level importance ranking stored
// on every prediction row of a training cycle.
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

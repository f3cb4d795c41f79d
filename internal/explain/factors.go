package explain

import "github.com/edumind/engagement-tracker/internal/features"

// Rule thresholds for the lightweight contributing-factor flags stored on
// every prediction row.
const (
	lowEngagementBelow = 40.0
	lowSessionBelow    = 30.0
)

// RuleFactors builds the rule-based contributing-factor snapshot persisted
// alongside a prediction. Unlike the model attributions these are simple
// threshold flags, cheap enough to store for every student every run.
func RuleFactors(row *features.Row) map[string]any {
	return map[string]any{
		"low_engagement_score": row.EngagementScore < lowEngagementBelow,
		"declining_trend":      row.IsDeclining == 1,
		"low_session_activity": row.SessionScore < lowSessionBelow,
		"consecutive_low_days": row.ConsecutiveLowDays,
	}
}

package features

// FeatureNames is the canonical model feature order. Training, inference,
// importance reporting and explanation attribution all index into vectors
// laid out in this order, so it must never be reordered; append only.
var FeatureNames = []string{
	"login_score",
	"session_score",
	"interaction_score",
	"forum_score",
	"assignment_score",
	"engagement_score",
	"engagement_score_lag_1day",
	"engagement_score_lag_3days",
	"engagement_score_lag_7days",
	"engagement_score_lag_14days",
	"rolling_avg_7days",
	"rolling_avg_30days",
	"engagement_volatility_7days",
	"is_declining",
	"is_improving",
	"login_to_session_ratio",
	"interaction_to_forum_ratio",
	"consecutive_low_days",
	"days_since_start",
	"cumulative_avg_score",
}

// NumFeatures is len(FeatureNames).
const NumFeatures = 20

// Vector lays the row out in FeatureNames order. Missing lag and rolling
// values are imputed as 0 here; training-set filtering happens before this
// call via TrainingEligible, so only inference rows carry the imputation.
func (r *Row) Vector() []float64 {
	return []float64{
		r.LoginScore,
		r.SessionScore,
		r.InteractionScore,
		r.ForumScore,
		r.AssignmentScore,
		r.EngagementScore,
		deref(r.Lag1),
		deref(r.Lag3),
		deref(r.Lag7),
		deref(r.Lag14),
		deref(r.RollingAvg7),
		deref(r.RollingAvg30),
		r.Volatility7,
		r.IsDeclining,
		r.IsImproving,
		r.LoginToSessionRatio,
		r.InteractionToForumRatio,
		float64(r.ConsecutiveLowDays),
		float64(r.DaysSinceStart),
		r.CumulativeAvgScore,
	}
}

// FeatureMap returns the named view of Vector, for persistence of the
// inputs a schedule or explanation was generated from.
func (r *Row) FeatureMap() map[string]float64 {
	vec := r.Vector()
	out := make(map[string]float64, len(vec))
	for i, name := range FeatureNames {
		out[name] = vec[i]
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

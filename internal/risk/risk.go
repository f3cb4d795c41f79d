// Package risk maps model probabilities to risk levels and engagement
// scores to training labels. The thresholds here are product-facing
// contract values; dashboards and notification rules key off the exact
// strings and boundaries.
package risk

const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"

	// Probability boundaries are inclusive on the upper tier.
	HighThreshold   = 0.7
	MediumThreshold = 0.4

	// Composite engagement score below which a row is labeled at-risk
	// for training.
	AtRiskCutoff = 30.0
)

// Categorize buckets a positive-class probability into a risk level.
// Boundary values promote: 0.4 is Medium, 0.7 is High.
func Categorize(probability float64) string {
	switch {
	case probability >= HighThreshold:
		return LevelHigh
	case probability >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Label is the binary training target: 1 when the composite engagement
// score is below the at-risk cutoff.
func Label(engagementScore float64) int {
	if engagementScore < AtRiskCutoff {
		return 1
	}
	return 0
}

// Confidence is how far the model's probability sits from the decision
// boundary, expressed as the probability mass on the predicted side.
func Confidence(probability float64) float64 {
	if probability >= 0.5 {
		return probability
	}
	return 1 - probability
}

package risk

// Three-tier class indices for the multiclass model variant. Indices are
// ordered by severity so "higher index means higher risk" holds
// everywhere tiers are compared.
const (
	TierSafe   = 0
	TierMedium = 1
	TierAtRisk = 2
)

// TierNames maps tier indices to their reporting labels.
var TierNames = [...]string{"Safe", "Medium", "At-Risk"}

// Tier boundaries on the composite engagement score for multiclass
// training labels.
const (
	tierAtRiskBelow = AtRiskCutoff
	tierMediumBelow = 60.0
)

// TierLabel is the three-tier training target for a composite score.
func TierLabel(engagementScore float64) int {
	switch {
	case engagementScore < tierAtRiskBelow:
		return TierAtRisk
	case engagementScore < tierMediumBelow:
		return TierMedium
	default:
		return TierSafe
	}
}

// CategorizeTiers picks the tier with the highest probability. Ties
// within epsilon resolve toward the higher-risk tier: when the model
// cannot separate two tiers, under-alerting is the worse failure.
func CategorizeTiers(probs []float64) int {
	const epsilon = 1e-9
	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best]+epsilon {
			best = k
			continue
		}
		if probs[k] >= probs[best]-epsilon && k > best {
			best = k
		}
	}
	return best
}

// Package explain turns model outputs into per-student attributions: which
// features pushed a prediction toward or away from risk, and a plain
// language summary an advisor can read.
package explain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/edumind/engagement-tracker/internal/ml"
	"github.com/edumind/engagement-tracker/internal/risk"
)

// ErrExplainabilityDegraded marks a failed attribution. Predictions remain
// valid without explanations, so callers surface this as a degraded
// response rather than an error page.
var ErrExplainabilityDegraded = errors.New("explainability degraded")

const (
	// topFeatureCount bounds the attribution list per explanation.
	topFeatureCount = 5
	// factorListLimit bounds the humanized risk/confidence factor lists.
	factorListLimit = 3

	DirectionIncreasesRisk = "increases_risk"
	DirectionDecreasesRisk = "decreases_risk"
)

// Contribution is one feature's additive effect on the explained score.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"`
}

// Explanation is the full attribution for a single prediction.
// ConfidenceFactors are the features that pushed the model toward the
// predicted outcome; RiskFactors pulled against it.
type Explanation struct {
	RiskProbability   float64        `json:"risk_probability"`
	RiskLevel         string         `json:"risk_level"`
	Confidence        float64        `json:"confidence"`
	Baseline          float64        `json:"baseline"`
	TopFeatures       []Contribution `json:"top_features"`
	RiskFactors       []string       `json:"risk_factors"`
	ConfidenceFactors []string       `json:"confidence_factors"`
	Summary           string         `json:"summary"`
}

// Explainer attributes a trained ensemble's scores to input features via
// decision-path decomposition. Safe for concurrent use; it never mutates
// the model.
type Explainer struct {
	model        *ml.GradientBoosting
	featureNames []string
}

func NewExplainer(model *ml.GradientBoosting, featureNames []string) (*Explainer, error) {
	if model == nil || len(model.Rounds) == 0 {
		return nil, fmt.Errorf("%w: no trained model to attribute", ErrExplainabilityDegraded)
	}
	if len(featureNames) != model.NumFeatures {
		return nil, fmt.Errorf("%w: %d feature names for a %d-feature model",
			ErrExplainabilityDegraded, len(featureNames), model.NumFeatures)
	}
	return &Explainer{model: model, featureNames: featureNames}, nil
}

// Explain attributes the prediction for x. The decomposition follows the
// predicted outcome: a positive contribution always supports the call the
// model actually made, whichever side that is.
func (e *Explainer) Explain(x []float64) (*Explanation, error) {
	if len(x) != e.model.NumFeatures {
		return nil, fmt.Errorf("%w: %d-wide input for a %d-feature model",
			ErrExplainabilityDegraded, len(x), e.model.NumFeatures)
	}

	probs := e.model.PredictProba(x)
	baselines, contribs := e.model.Contributions(x)

	var probability, confidence float64
	var level string
	output := 0
	supportsRisk := true
	if e.model.Classes() == 2 {
		probability = probs[1]
		confidence = risk.Confidence(probability)
		level = risk.Categorize(probability)
		// When the model calls the student safe, negating the at-risk
		// margin gives the safe-class log-odds, so the additive
		// reconstruction lands on the predicted class's probability.
		if probability < 0.5 {
			supportsRisk = false
			baselines[0] = -baselines[0]
			for i := range contribs[0] {
				contribs[0][i] = -contribs[0][i]
			}
		}
	} else {
		output = risk.CategorizeTiers(probs)
		probability = probs[output]
		confidence = probability
		level = risk.TierNames[output]
		supportsRisk = output != risk.TierSafe
	}

	exp := &Explanation{
		RiskProbability: probability,
		RiskLevel:       level,
		Confidence:      confidence,
		Baseline:        baselines[output],
		TopFeatures:     rankContributions(e.featureNames, x, contribs[output], supportsRisk),
	}
	for _, c := range exp.TopFeatures {
		if c.Contribution > 0 && len(exp.ConfidenceFactors) < factorListLimit {
			exp.ConfidenceFactors = append(exp.ConfidenceFactors, Humanize(c.Feature))
		}
		if c.Contribution < 0 && len(exp.RiskFactors) < factorListLimit {
			exp.RiskFactors = append(exp.RiskFactors, Humanize(c.Feature))
		}
	}
	exp.Summary = summarize(exp)
	return exp, nil
}

// rankContributions sorts by absolute effect and keeps the strongest few.
// Equal magnitudes fall back to feature order so output is deterministic.
// Direction reads the contribution in risk terms: supporting an at-risk
// call and opposing a safe call both increase risk.
func rankContributions(names []string, x, contribs []float64, supportsRisk bool) []Contribution {
	all := make([]Contribution, len(contribs))
	for i, c := range contribs {
		direction := DirectionDecreasesRisk
		if c != 0 && (c > 0) == supportsRisk {
			direction = DirectionIncreasesRisk
		}
		all[i] = Contribution{
			Feature:      names[i],
			Value:        x[i],
			Contribution: c,
			Direction:    direction,
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		absA, absB := abs(all[a].Contribution), abs(all[b].Contribution)
		return absA > absB
	})
	if len(all) > topFeatureCount {
		all = all[:topFeatureCount]
	}
	return all
}

func summarize(exp *Explanation) string {
	adjective := "low"
	switch {
	case exp.Confidence >= 0.8:
		adjective = "high"
	case exp.Confidence >= 0.6:
		adjective = "moderate"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s risk predicted with %s confidence (probability %.2f).",
		exp.RiskLevel, adjective, exp.Confidence)
	if len(exp.ConfidenceFactors) > 0 {
		fmt.Fprintf(&b, " Key factors behind the call: %s.", strings.Join(exp.ConfidenceFactors, ", "))
	}
	if len(exp.RiskFactors) > 0 {
		fmt.Fprintf(&b, " Pulling against it: %s.", strings.Join(exp.RiskFactors, ", "))
	}
	return b.String()
}

// Humanize turns a feature column name into display form:
// "consecutive_low_days" becomes "Consecutive Low Days".
func Humanize(feature string) string {
	words := strings.Split(feature, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

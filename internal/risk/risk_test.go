package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeBoundaries(t *testing.T) {
	cases := []struct {
		name        string
		probability float64
		want        string
	}{
		{"zero", 0.0, LevelLow},
		{"just below medium", 0.39, LevelLow},
		{"exactly medium", 0.40, LevelMedium},
		{"mid band", 0.55, LevelMedium},
		{"just below high", 0.699, LevelMedium},
		{"exactly high", 0.70, LevelHigh},
		{"certain", 1.0, LevelHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Categorize(tc.probability))
		})
	}
}

func TestLabelCutoff(t *testing.T) {
	assert.Equal(t, 1, Label(0))
	assert.Equal(t, 1, Label(29.99))
	assert.Equal(t, 0, Label(30))
	assert.Equal(t, 0, Label(100))
}

func TestConfidenceIsDistanceFromBoundary(t *testing.T) {
	assert.Equal(t, 0.9, Confidence(0.9))
	assert.Equal(t, 0.9, Confidence(0.1))
	assert.Equal(t, 0.5, Confidence(0.5))
}

func TestTierLabelBoundaries(t *testing.T) {
	assert.Equal(t, TierAtRisk, TierLabel(29.99))
	assert.Equal(t, TierMedium, TierLabel(30))
	assert.Equal(t, TierMedium, TierLabel(59.99))
	assert.Equal(t, TierSafe, TierLabel(60))
	assert.Equal(t, TierSafe, TierLabel(95))
}

func TestCategorizeTiers(t *testing.T) {
	cases := []struct {
		name  string
		probs []float64
		want  int
	}{
		{"clear safe", []float64{0.8, 0.1, 0.1}, TierSafe},
		{"clear medium", []float64{0.2, 0.6, 0.2}, TierMedium},
		{"clear at-risk", []float64{0.1, 0.2, 0.7}, TierAtRisk},
		{"exact tie prefers higher risk", []float64{0.45, 0.1, 0.45}, TierAtRisk},
		{"near tie within epsilon prefers higher risk", []float64{0.45, 0.45 - 1e-10, 0.1}, TierMedium},
		{"gap beyond epsilon keeps the leader", []float64{0.45, 0.4499, 0.1}, TierSafe},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategorizeTiers(tc.probs))
		})
	}
}

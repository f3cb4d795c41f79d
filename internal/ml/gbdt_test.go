package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableData builds a deterministic two-feature binary dataset where
// the first feature carries the signal and the second is noise.
func separableData(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		signal := rng.Float64() * 100
		noise := rng.Float64() * 100
		X[i] = []float64{signal, noise}
		if signal < 35 {
			y[i] = 1
		}
	}
	return X, y
}

func threeClassData(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		signal := rng.Float64() * 100
		X[i] = []float64{signal, rng.Float64()}
		switch {
		case signal < 33:
			y[i] = 2
		case signal < 66:
			y[i] = 1
		default:
			y[i] = 0
		}
	}
	return X, y
}

func TestBinaryFitSeparatesClasses(t *testing.T) {
	X, y := separableData(400, 7)
	m := NewGradientBoosting(42)
	m.NEstimators = 30
	require.NoError(t, m.Fit(X, y))
	assert.Equal(t, 2, m.Classes())

	lowProba := m.PredictProba([]float64{10, 50})
	highProba := m.PredictProba([]float64{90, 50})
	require.Len(t, lowProba, 2)
	assert.Greater(t, lowProba[1], 0.8, "deep in the positive region")
	assert.Less(t, highProba[1], 0.2, "deep in the negative region")
	assert.InDelta(t, 1.0, lowProba[0]+lowProba[1], 1e-12)
}

func TestFitIsDeterministic(t *testing.T) {
	X, y := separableData(300, 11)

	a := NewGradientBoosting(42)
	a.NEstimators = 15
	require.NoError(t, a.Fit(X, y))
	b := NewGradientBoosting(42)
	b.NEstimators = 15
	require.NoError(t, b.Fit(X, y))

	probe := []float64{42, 13}
	assert.Equal(t, a.PredictProba(probe), b.PredictProba(probe))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
}

func TestFeatureImportancesNormalizedAndRanked(t *testing.T) {
	X, y := separableData(400, 3)
	m := NewGradientBoosting(42)
	m.NEstimators = 20
	require.NoError(t, m.Fit(X, y))

	imp := m.FeatureImportances()
	require.Len(t, imp, 2)
	var total float64
	for _, v := range imp {
		require.GreaterOrEqual(t, v, 0.0)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, imp[0], imp[1], "signal feature must dominate noise")
}

func TestContributionsReconstructRawScore(t *testing.T) {
	X, y := separableData(300, 19)
	m := NewGradientBoosting(42)
	m.NEstimators = 25
	require.NoError(t, m.Fit(X, y))

	for _, probe := range [][]float64{{5, 80}, {50, 50}, {95, 5}} {
		raw := m.rawScores(probe)
		baselines, contribs := m.Contributions(probe)
		require.Len(t, baselines, 1)

		sum := baselines[0]
		for _, c := range contribs[0] {
			sum += c
		}
		assert.InDelta(t, raw[0], sum, 1e-9)
		assert.InDelta(t, m.PredictProba(probe)[1], sigmoid(sum), 1e-9)
	}
}

func TestMulticlassProbabilities(t *testing.T) {
	X, y := threeClassData(600, 5)
	m := NewGradientBoosting(42)
	m.NEstimators = 30
	require.NoError(t, m.Fit(X, y))
	assert.Equal(t, 3, m.Classes())

	cases := []struct {
		x    []float64
		want int
	}{
		{[]float64{10, 0.5}, 2},
		{[]float64{50, 0.5}, 1},
		{[]float64{90, 0.5}, 0},
	}
	for _, tc := range cases {
		probs := m.PredictProba(tc.x)
		require.Len(t, probs, 3)
		var sum float64
		best := 0
		for k, p := range probs {
			sum += p
			if p > probs[best] {
				best = k
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Equal(t, tc.want, best, "x=%v probs=%v", tc.x, probs)
	}
}

func TestMulticlassContributionsReconstructRawScores(t *testing.T) {
	X, y := threeClassData(400, 23)
	m := NewGradientBoosting(42)
	m.NEstimators = 10
	require.NoError(t, m.Fit(X, y))

	probe := []float64{40, 0.3}
	raw := m.rawScores(probe)
	baselines, contribs := m.Contributions(probe)
	require.Len(t, baselines, 3)
	for k := range raw {
		sum := baselines[k]
		for _, c := range contribs[k] {
			sum += c
		}
		assert.InDelta(t, raw[k], sum, 1e-9, "class %d", k)
	}
}

func TestFitRejectsDegenerateLabels(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	err := NewGradientBoosting(42).Fit(X, []int{0, 0, 0})
	require.ErrorIs(t, err, ErrDegenerateLabels)
}

func TestFitRejectsShapeMismatch(t *testing.T) {
	X := [][]float64{{1}, {2}}
	require.Error(t, NewGradientBoosting(42).Fit(X, []int{0}))
	require.Error(t, NewGradientBoosting(42).Fit(nil, nil))
}

func TestSmallSampleFallsBackToPrior(t *testing.T) {
	// Below min_samples_split every tree is a stump at the root, so the
	// model still predicts, just without splits.
	X := [][]float64{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	y := []int{0, 0, 1, 1}
	m := NewGradientBoosting(42)
	m.NEstimators = 5
	require.NoError(t, m.Fit(X, y))

	probs := m.PredictProba([]float64{1, 0})
	assert.False(t, math.IsNaN(probs[1]))
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)
}

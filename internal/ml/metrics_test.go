package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracy(t *testing.T) {
	cases := []struct {
		name  string
		yTrue []int
		yPred []int
		want  float64
	}{
		{"all correct", []int{0, 1, 1, 0}, []int{0, 1, 1, 0}, 1.0},
		{"half correct", []int{0, 1, 1, 0}, []int{0, 1, 0, 1}, 0.5},
		{"none correct", []int{1, 1}, []int{0, 0}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Accuracy(tc.yTrue, tc.yPred))
		})
	}
}

func TestROCAUCPerfectRanking(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	auc, err := ROCAUC(yTrue, scores)
	require.NoError(t, err)
	assert.Equal(t, 1.0, auc)
}

func TestROCAUCInvertedRanking(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	auc, err := ROCAUC(yTrue, scores)
	require.NoError(t, err)
	assert.Equal(t, 0.0, auc)
}

func TestROCAUCConstantScorerIsHalf(t *testing.T) {
	yTrue := []int{0, 1, 0, 1, 1, 0}
	scores := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	auc, err := ROCAUC(yTrue, scores)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, auc, 1e-12)
}

func TestROCAUCPartialTies(t *testing.T) {
	yTrue := []int{0, 1, 0, 1}
	scores := []float64{0.3, 0.3, 0.1, 0.9}
	auc, err := ROCAUC(yTrue, scores)
	require.NoError(t, err)
	// Pairs: (0.3,0.3) ties for 0.5, the other three pairs rank correctly.
	assert.InDelta(t, 0.875, auc, 1e-12)
}

func TestROCAUCSingleClassUndefined(t *testing.T) {
	_, err := ROCAUC([]int{1, 1, 1}, []float64{0.1, 0.5, 0.9})
	require.ErrorIs(t, err, ErrUndefinedAUC)

	_, err = ROCAUC([]int{0, 0}, []float64{0.1, 0.9})
	require.ErrorIs(t, err, ErrUndefinedAUC)
}

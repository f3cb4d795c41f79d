package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplitCoversAllRowsOnce(t *testing.T) {
	y := make([]int, 100)
	for i := 60; i < 100; i++ {
		y[i] = 1
	}
	train, test := StratifiedSplit(y, 0.2, 42)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		require.False(t, seen[i], "row %d assigned twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)
}

func TestStratifiedSplitPreservesClassBalance(t *testing.T) {
	y := make([]int, 100)
	for i := 60; i < 100; i++ {
		y[i] = 1
	}
	_, test := StratifiedSplit(y, 0.2, 42)
	require.Len(t, test, 20)

	pos := 0
	for _, i := range test {
		if y[i] == 1 {
			pos++
		}
	}
	assert.Equal(t, 8, pos, "40%% positives in data, so 40%% in the test fold")
}

func TestStratifiedSplitDeterministicPerSeed(t *testing.T) {
	y := make([]int, 50)
	for i := 0; i < 50; i += 3 {
		y[i] = 1
	}
	trainA, testA := StratifiedSplit(y, 0.2, 7)
	trainB, testB := StratifiedSplit(y, 0.2, 7)
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)

	_, testC := StratifiedSplit(y, 0.2, 8)
	assert.NotEqual(t, testA, testC)
}

func TestStratifiedSplitKeepsRareClassOnBothSides(t *testing.T) {
	// Two rows of the rare class: one must land on each side.
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}
	train, test := StratifiedSplit(y, 0.2, 1)

	count := func(idx []int) int {
		n := 0
		for _, i := range idx {
			if y[i] == 1 {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count(train))
	assert.Equal(t, 1, count(test))
}

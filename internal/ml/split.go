package ml

import (
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets,
// preserving per-class proportions. The shuffle is driven entirely by
// seed, so a given (labels, testFraction, seed) triple always yields the
// same split.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	var classes []int
	for i, label := range y {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Ints(classes)

	for _, label := range classes {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(a, b int) {
			idx[a], idx[b] = idx[b], idx[a]
		})
		nTest := int(float64(len(idx)) * testFraction)
		// Keep at least one row of each class on both sides when the
		// class has enough rows for that.
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		if nTest == len(idx) && len(idx) > 1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

package ml

import (
	"errors"
	"sort"
)

// ErrUndefinedAUC is returned when the evaluation labels contain a single
// class, which leaves ROC-AUC undefined.
var ErrUndefinedAUC = errors.New("roc-auc undefined: evaluation labels contain a single class")

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ROCAUC computes the area under the ROC curve from positive-class scores
// via the rank-statistic formulation. Tied scores share their average
// rank, so degenerate constant scorers land at exactly 0.5.
func ROCAUC(yTrue []int, scores []float64) (float64, error) {
	pos, neg := 0, 0
	for _, label := range yTrue {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, ErrUndefinedAUC
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			j++
		}
		// 1-based average rank across the tie group.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var posRankSum float64
	for i, label := range yTrue {
		if label == 1 {
			posRankSum += ranks[i]
		}
	}
	nPos, nNeg := float64(pos), float64(neg)
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

package ml

import "sort"

// Node is one split or leaf of a regression tree. Every node, internal
// ones included, carries the Newton-step value for its sample subset;
// internal values are what make path-based contribution attribution
// exactly additive.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

func (n *Node) leaf() bool { return n.Left == nil }

// Tree is a regression tree fit to gradients with second-order leaf
// values, the base learner of the boosting ensemble.
type Tree struct {
	Root *Node `json:"root"`
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// fitTree grows a tree on gradient targets g with hessian weights h over
// the rows selected by idx. importances is accumulated in place with the
// per-split impurity decrease, indexed by feature.
func fitTree(X [][]float64, g, h []float64, idx []int, p treeParams, importances []float64) *Tree {
	t := &Tree{}
	t.Root = grow(X, g, h, idx, 0, p, importances)
	return t
}

func grow(X [][]float64, g, h []float64, idx []int, depth int, p treeParams, importances []float64) *Node {
	n := &Node{Feature: -1, Value: newtonValue(g, h, idx)}
	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit {
		return n
	}

	feature, threshold, gain, left, right := bestSplit(X, g, idx, p.minSamplesLeaf)
	if feature < 0 {
		return n
	}
	if importances != nil {
		importances[feature] += gain
	}

	n.Feature = feature
	n.Threshold = threshold
	n.Left = grow(X, g, h, left, depth+1, p, importances)
	n.Right = grow(X, g, h, right, depth+1, p, importances)
	return n
}

// bestSplit scans every feature for the threshold with the largest
// reduction in gradient sum of squares. Returns feature -1 when no split
// satisfies the minimum leaf size or improves on the parent.
func bestSplit(X [][]float64, g []float64, idx []int, minLeaf int) (int, float64, float64, []int, []int) {
	numFeatures := len(X[idx[0]])

	var parentSum, parentSq float64
	for _, i := range idx {
		parentSum += g[i]
		parentSq += g[i] * g[i]
	}
	parentSSE := parentSq - parentSum*parentSum/float64(len(idx))

	bestFeature := -1
	var bestThreshold, bestGain float64
	var bestPos int
	var bestOrder []int

	order := make([]int, len(idx))
	for f := 0; f < numFeatures; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool {
			return X[order[a]][f] < X[order[b]][f]
		})

		var leftSum, leftSq float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += g[i]
			leftSq += g[i] * g[i]

			nLeft := pos + 1
			nRight := len(order) - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			// Only between distinct feature values.
			if X[order[pos]][f] == X[order[pos+1]][f] {
				continue
			}

			rightSum := parentSum - leftSum
			rightSq := parentSq - leftSq
			leftSSE := leftSq - leftSum*leftSum/float64(nLeft)
			rightSSE := rightSq - rightSum*rightSum/float64(nRight)
			gain := parentSSE - leftSSE - rightSSE
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[order[pos]][f] + X[order[pos+1]][f]) / 2
				bestPos = nLeft
				bestOrder = append(bestOrder[:0], order...)
			}
		}
	}

	if bestFeature < 0 || bestGain <= 0 {
		return -1, 0, 0, nil, nil
	}
	left := make([]int, bestPos)
	right := make([]int, len(bestOrder)-bestPos)
	copy(left, bestOrder[:bestPos])
	copy(right, bestOrder[bestPos:])
	return bestFeature, bestThreshold, bestGain, left, right
}

// newtonValue is the second-order leaf estimate sum(g)/sum(h).
func newtonValue(g, h []float64, idx []int) float64 {
	var sg, sh float64
	for _, i := range idx {
		sg += g[i]
		sh += h[i]
	}
	if sh < 1e-16 {
		sh = 1e-16
	}
	return sg / sh
}

// Predict returns the leaf value for x.
func (t *Tree) Predict(x []float64) float64 {
	n := t.Root
	for !n.leaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Contributions walks x's decision path, attributing the value change at
// each split to the split feature, and returns the root value as the
// tree's baseline. By construction baseline plus the per-feature deltas
// equals Predict(x) exactly.
func (t *Tree) Contributions(x []float64, contribs []float64) float64 {
	n := t.Root
	baseline := n.Value
	for !n.leaf() {
		var child *Node
		if x[n.Feature] <= n.Threshold {
			child = n.Left
		} else {
			child = n.Right
		}
		contribs[n.Feature] += child.Value - n.Value
		n = child
	}
	return baseline
}

package ml

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateLabels is returned when the training labels do not span at
// least two classes; a boosted classifier cannot be fit on one class.
var ErrDegenerateLabels = errors.New("training labels contain fewer than two classes")

// GradientBoosting is a gradient-boosted decision tree classifier with
// logistic loss for two classes and softmax loss beyond that. All
// exported fields are serialized into the model artifact.
type GradientBoosting struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Seed            int64   `json:"seed"`

	NumClasses  int       `json:"num_classes"`
	NumFeatures int       `json:"num_features"`
	Priors      []float64 `json:"priors"`
	// Rounds[m][k] is round m's tree for class k. Two-class models carry
	// a single tree per round for the positive-class raw score.
	Rounds      [][]*Tree `json:"rounds"`
	Importances []float64 `json:"importances"`
}

// NewGradientBoosting returns an estimator with the production
// hyperparameters. Override fields before Fit to tune.
func NewGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        5,
		MinSamplesSplit: 20,
		MinSamplesLeaf:  10,
		Seed:            seed,
	}
}

func (m *GradientBoosting) Classes() int { return m.NumClasses }

func (m *GradientBoosting) FeatureImportances() []float64 {
	out := make([]float64, len(m.Importances))
	copy(out, m.Importances)
	return out
}

// Fit trains the ensemble. Labels must be integers in [0, K) with every
// class present at least once.
func (m *GradientBoosting) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("invalid training shape: %d rows, %d labels", len(X), len(y))
	}
	m.NumFeatures = len(X[0])

	counts := map[int]int{}
	numClasses := 0
	for _, label := range y {
		if label < 0 {
			return fmt.Errorf("negative class label %d", label)
		}
		counts[label]++
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}
	if len(counts) < 2 {
		return ErrDegenerateLabels
	}
	for k := 0; k < numClasses; k++ {
		if counts[k] == 0 {
			return fmt.Errorf("class %d absent from training labels", k)
		}
	}
	m.NumClasses = numClasses
	m.Importances = make([]float64, m.NumFeatures)

	if numClasses == 2 {
		m.fitBinary(X, y, counts)
	} else {
		m.fitMulticlass(X, y, counts)
	}

	var total float64
	for _, v := range m.Importances {
		total += v
	}
	if total > 0 {
		for i := range m.Importances {
			m.Importances[i] /= total
		}
	}
	return nil
}

func (m *GradientBoosting) fitBinary(X [][]float64, y []int, counts map[int]int) {
	n := len(X)
	pos := float64(counts[1]) / float64(n)
	m.Priors = []float64{math.Log(pos / (1 - pos))}

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = m.Priors[0]
	}
	idx := allIndices(n)
	g := make([]float64, n)
	h := make([]float64, n)
	params := m.treeParams()

	m.Rounds = make([][]*Tree, 0, m.NEstimators)
	for round := 0; round < m.NEstimators; round++ {
		for i := 0; i < n; i++ {
			p := sigmoid(raw[i])
			g[i] = float64(y[i]) - p
			h[i] = p * (1 - p)
		}
		tree := fitTree(X, g, h, idx, params, m.Importances)
		for i := 0; i < n; i++ {
			raw[i] += m.LearningRate * tree.Predict(X[i])
		}
		m.Rounds = append(m.Rounds, []*Tree{tree})
	}
}

func (m *GradientBoosting) fitMulticlass(X [][]float64, y []int, counts map[int]int) {
	n := len(X)
	K := m.NumClasses
	m.Priors = make([]float64, K)
	for k := 0; k < K; k++ {
		m.Priors[k] = math.Log(float64(counts[k]) / float64(n))
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = make([]float64, K)
		copy(raw[i], m.Priors)
	}
	idx := allIndices(n)
	g := make([]float64, n)
	h := make([]float64, n)
	probs := make([]float64, K)
	params := m.treeParams()

	m.Rounds = make([][]*Tree, 0, m.NEstimators)
	for round := 0; round < m.NEstimators; round++ {
		trees := make([]*Tree, K)
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				softmaxInto(raw[i], probs)
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				g[i] = target - probs[k]
				h[i] = probs[k] * (1 - probs[k])
			}
			trees[k] = fitTree(X, g, h, idx, params, m.Importances)
		}
		// Raw scores advance only after every class tree of the round is
		// fit, so class trees within a round see the same distribution.
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				raw[i][k] += m.LearningRate * trees[k].Predict(X[i])
			}
		}
		m.Rounds = append(m.Rounds, trees)
	}
}

// PredictProba returns class probabilities for x, summing to 1.
func (m *GradientBoosting) PredictProba(x []float64) []float64 {
	raw := m.rawScores(x)
	if m.NumClasses == 2 {
		p := sigmoid(raw[0])
		return []float64{1 - p, p}
	}
	out := make([]float64, m.NumClasses)
	softmaxInto(raw, out)
	return out
}

// rawScores returns the pre-link ensemble outputs: a single positive-class
// score for two classes, one score per class otherwise.
func (m *GradientBoosting) rawScores(x []float64) []float64 {
	if m.NumClasses == 2 {
		raw := m.Priors[0]
		for _, round := range m.Rounds {
			raw += m.LearningRate * round[0].Predict(x)
		}
		return []float64{raw}
	}
	raw := make([]float64, m.NumClasses)
	copy(raw, m.Priors)
	for _, round := range m.Rounds {
		for k, tree := range round {
			raw[k] += m.LearningRate * tree.Predict(x)
		}
	}
	return raw
}

// Contributions decomposes the raw scores for x into per-feature additive
// terms: raw[k] == baselines[k] + sum(contribs[k]). The explainer builds
// its attributions on this identity.
func (m *GradientBoosting) Contributions(x []float64) (baselines []float64, contribs [][]float64) {
	numOutputs := 1
	if m.NumClasses > 2 {
		numOutputs = m.NumClasses
	}
	baselines = make([]float64, numOutputs)
	contribs = make([][]float64, numOutputs)
	for k := 0; k < numOutputs; k++ {
		baselines[k] = m.Priors[k]
		contribs[k] = make([]float64, m.NumFeatures)
	}
	scaled := make([]float64, m.NumFeatures)
	for _, round := range m.Rounds {
		for k, tree := range round {
			for i := range scaled {
				scaled[i] = 0
			}
			rootValue := tree.Contributions(x, scaled)
			baselines[k] += m.LearningRate * rootValue
			for i, c := range scaled {
				contribs[k][i] += m.LearningRate * c
			}
		}
	}
	return baselines, contribs
}

func (m *GradientBoosting) treeParams() treeParams {
	return treeParams{
		maxDepth:        m.MaxDepth,
		minSamplesSplit: m.MinSamplesSplit,
		minSamplesLeaf:  m.MinSamplesLeaf,
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// softmaxInto writes the softmax of raw into out with max-subtraction for
// numerical stability.
func softmaxInto(raw, out []float64) {
	max := raw[0]
	for _, v := range raw[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// Package ml implements the gradient-boosted tree estimator behind the
// disengagement risk classifier, along with the train/test split, the
// evaluation metrics and the on-disk model artifact.
package ml

// Estimator is the contract the training pipeline and the scoring service
// program against. Implementations must be safe for concurrent
// PredictProba calls once Fit has returned.
type Estimator interface {
	// Fit trains on the feature matrix and integer class labels.
	Fit(X [][]float64, y []int) error

	// PredictProba returns one probability per class, in class-index
	// order, summing to 1.
	PredictProba(x []float64) []float64

	// FeatureImportances returns normalized importances aligned with the
	// feature order the estimator was trained on.
	FeatureImportances() []float64

	// Classes returns the number of classes the estimator was fit on.
	Classes() int
}

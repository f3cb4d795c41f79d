package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrModelUnavailable wraps every artifact load failure. Callers that need
// a model to serve treat this as fatal rather than inventing predictions.
var ErrModelUnavailable = errors.New("model artifact unavailable")

const (
	ModelVersion = "v1.0_GradientBoosting"
	ModelType    = "GradientBoosting"
)

// Metrics is the evaluation summary captured at training time and carried
// with the artifact for provenance.
type Metrics struct {
	Accuracy     float64 `json:"accuracy"`
	ROCAUC       float64 `json:"roc_auc"`
	TrainRows    int     `json:"train_rows"`
	TestRows     int     `json:"test_rows"`
	PositiveRate float64 `json:"positive_rate"`
}

// Artifact is the serialized form of a trained model plus everything
// needed to score and audit it: the feature order it was trained on, its
// version tag and its held-out metrics.
type Artifact struct {
	ModelVersion string            `json:"model_version"`
	ModelType    string            `json:"model_type"`
	TrainedAt    time.Time         `json:"trained_at"`
	FeatureNames []string          `json:"feature_names"`
	Metrics      Metrics           `json:"metrics"`
	Model        *GradientBoosting `json:"model"`
}

// Save writes the artifact atomically: full write to a temp file in the
// target directory, then rename, so a crash mid-write never leaves a
// truncated artifact for the next Load.
func (a *Artifact) Save(path string) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding model artifact: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	return nil
}

// LoadArtifact reads and validates a saved model. Any failure, from a
// missing file to a structurally empty model, comes back wrapped in
// ErrModelUnavailable.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrModelUnavailable, path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrModelUnavailable, path, err)
	}
	if a.Model == nil || len(a.Model.Rounds) == 0 {
		return nil, fmt.Errorf("%w: %s holds no trained ensemble", ErrModelUnavailable, path)
	}
	if len(a.FeatureNames) != a.Model.NumFeatures {
		return nil, fmt.Errorf("%w: %s feature names (%d) disagree with model width (%d)",
			ErrModelUnavailable, path, len(a.FeatureNames), a.Model.NumFeatures)
	}
	return &a, nil
}

package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/utils"
)

// Hyperparams are the tunable training knobs, overridable per environment
// through an optional YAML file.
type Hyperparams struct {
	NEstimators     int     `yaml:"n_estimators"`
	LearningRate    float64 `yaml:"learning_rate"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
	Seed            int64   `yaml:"seed"`
	TestFraction    float64 `yaml:"test_fraction"`
	MinTrainingRows int     `yaml:"min_training_rows"`
}

// DefaultHyperparams are the production settings every run starts from.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        5,
		MinSamplesSplit: 20,
		MinSamplesLeaf:  10,
		Seed:            42,
		TestFraction:    0.2,
		MinTrainingRows: 50,
	}
}

// Config is the pipeline's environment-level configuration.
type Config struct {
	ArtifactPath    string
	HyperparamsPath string
	Hyperparams     Hyperparams
	HorizonDays     int
}

// LoadConfig reads the pipeline configuration from the environment, then
// layers the optional hyperparameter file on top of the defaults.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		ArtifactPath:    utils.GetEnv("MODEL_ARTIFACT_PATH", "models/disengagement.json", log),
		HyperparamsPath: utils.GetEnv("MODEL_HYPERPARAMS_PATH", "", log),
		Hyperparams:     DefaultHyperparams(),
		HorizonDays:     utils.GetEnvAsInt("PREDICTION_HORIZON_DAYS", 7, log),
	}
	if cfg.HyperparamsPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(cfg.HyperparamsPath)
	if err != nil {
		return cfg, fmt.Errorf("reading hyperparameter file %s: %w", cfg.HyperparamsPath, err)
	}
	if err := yaml.Unmarshal(data, &cfg.Hyperparams); err != nil {
		return cfg, fmt.Errorf("parsing hyperparameter file %s: %w", cfg.HyperparamsPath, err)
	}
	log.Info("Loaded hyperparameter overrides", "path", cfg.HyperparamsPath)
	return cfg, nil
}

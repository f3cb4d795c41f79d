package services

import (
	"context"
	"fmt"
	"time"

	"github.com/edumind/engagement-tracker/internal/explain"
	"github.com/edumind/engagement-tracker/internal/features"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/ml"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
)

// LiveScore is an on-demand prediction computed from the student's current
// history, as opposed to the persisted batch predictions.
type LiveScore struct {
	StudentID       string             `json:"student_id"`
	RiskProbability float64            `json:"risk_probability"`
	RiskLevel       string             `json:"risk_level"`
	AtRisk          bool               `json:"at_risk"`
	ConfidenceScore float64            `json:"confidence_score"`
	Features        map[string]float64 `json:"features"`
	ModelVersion    string             `json:"model_version"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// ModelInfo describes the currently loaded model.
type ModelInfo struct {
	ModelVersion string     `json:"model_version"`
	ModelType    string     `json:"model_type"`
	TrainedAt    time.Time  `json:"trained_at"`
	Metrics      ml.Metrics `json:"metrics"`
	FeatureNames []string   `json:"feature_names"`
}

type ScoringService interface {
	ScoreStudent(ctx context.Context, studentID string) (*LiveScore, error)
	// ScoreFeatures scores a caller-supplied feature map without touching
	// storage; unknown feature names are rejected, missing ones impute 0.
	ScoreFeatures(features map[string]float64) (*LiveScore, error)
	// ExplainStudent attributes the current prediction. Returns
	// explain.ErrExplainabilityDegraded when attribution is unavailable;
	// the prediction itself is unaffected.
	ExplainStudent(ctx context.Context, studentID string) (*explain.Explanation, error)
	ExplainFeatures(features map[string]float64) (*explain.Explanation, error)
	ModelInfo() ModelInfo
}

// scoringService wraps one immutable loaded artifact. Nothing here mutates
// after construction, so concurrent requests need no locking; swapping in
// a retrained model means constructing a new service.
type scoringService struct {
	log       *logger.Logger
	scoreRepo repos.EngagementScoreRepo
	engineer  *features.Engineer
	artifact  *ml.Artifact
	explainer *explain.Explainer
}

// NewScoringService loads the model artifact and prepares the explainer.
// A missing or unreadable artifact is a construction error; a broken
// explainer only degrades explanations.
func NewScoringService(log *logger.Logger, scoreRepo repos.EngagementScoreRepo, artifactPath string) (ScoringService, error) {
	serviceLog := log.With("service", "ScoringService")
	artifact, err := ml.LoadArtifact(artifactPath)
	if err != nil {
		return nil, err
	}
	explainer, err := explain.NewExplainer(artifact.Model, artifact.FeatureNames)
	if err != nil {
		serviceLog.Warn("Explainer unavailable, serving predictions without attributions", "error", err)
		explainer = nil
	}
	serviceLog.Info("Loaded model artifact",
		"model_version", artifact.ModelVersion,
		"trained_at", artifact.TrainedAt,
		"accuracy", artifact.Metrics.Accuracy,
		"roc_auc", artifact.Metrics.ROCAUC)
	return &scoringService{
		log:       serviceLog,
		scoreRepo: scoreRepo,
		engineer:  features.NewEngineer(log),
		artifact:  artifact,
		explainer: explainer,
	}, nil
}

func (s *scoringService) ScoreStudent(ctx context.Context, studentID string) (*LiveScore, error) {
	row, err := s.latestFeatureRow(ctx, studentID)
	if err != nil {
		return nil, err
	}
	p := s.artifact.Model.PredictProba(row.Vector())[1]
	return &LiveScore{
		StudentID:       studentID,
		RiskProbability: p,
		RiskLevel:       risk.Categorize(p),
		AtRisk:          p >= 0.5,
		ConfidenceScore: risk.Confidence(p),
		Features:        row.FeatureMap(),
		ModelVersion:    s.artifact.ModelVersion,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

func (s *scoringService) ScoreFeatures(featureMap map[string]float64) (*LiveScore, error) {
	x, err := vectorFromMap(featureMap)
	if err != nil {
		return nil, err
	}
	p := s.artifact.Model.PredictProba(x)[1]
	full := make(map[string]float64, len(features.FeatureNames))
	for i, name := range features.FeatureNames {
		full[name] = x[i]
	}
	return &LiveScore{
		RiskProbability: p,
		RiskLevel:       risk.Categorize(p),
		AtRisk:          p >= 0.5,
		ConfidenceScore: risk.Confidence(p),
		Features:        full,
		ModelVersion:    s.artifact.ModelVersion,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

func (s *scoringService) ExplainFeatures(featureMap map[string]float64) (*explain.Explanation, error) {
	if s.explainer == nil {
		return nil, fmt.Errorf("%w: no explainer for loaded model", explain.ErrExplainabilityDegraded)
	}
	x, err := vectorFromMap(featureMap)
	if err != nil {
		return nil, err
	}
	return s.explainer.Explain(x)
}

func (s *scoringService) ExplainStudent(ctx context.Context, studentID string) (*explain.Explanation, error) {
	if s.explainer == nil {
		return nil, fmt.Errorf("%w: no explainer for loaded model", explain.ErrExplainabilityDegraded)
	}
	row, err := s.latestFeatureRow(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.explainer.Explain(row.Vector())
}

func (s *scoringService) ModelInfo() ModelInfo {
	return ModelInfo{
		ModelVersion: s.artifact.ModelVersion,
		ModelType:    s.artifact.ModelType,
		TrainedAt:    s.artifact.TrainedAt,
		Metrics:      s.artifact.Metrics,
		FeatureNames: s.artifact.FeatureNames,
	}
}

// vectorFromMap lays a caller-supplied feature map out in canonical
// column order. Unknown names are rejected so a typo cannot silently
// score as a zero; genuinely missing columns do impute to zero, same as
// early-history rows.
func vectorFromMap(featureMap map[string]float64) ([]float64, error) {
	if len(featureMap) == 0 {
		return nil, fmt.Errorf("empty feature map")
	}
	known := make(map[string]int, len(features.FeatureNames))
	for i, name := range features.FeatureNames {
		known[name] = i
	}
	x := make([]float64, len(features.FeatureNames))
	for name, value := range featureMap {
		i, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		x[i] = value
	}
	return x, nil
}

// latestFeatureRow engineers features over the student's full score
// history and returns the newest row. Truncating the history would shift
// days_since_start and the cumulative average away from the values the
// batch pipeline trained on.
func (s *scoringService) latestFeatureRow(ctx context.Context, studentID string) (*features.Row, error) {
	history, err := s.scoreRepo.ListByStudent(ctx, nil, studentID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading score history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: no engagement scores for student %s", ErrNotFound, studentID)
	}
	set := s.engineer.Build(history)
	row, ok := set.LatestPerStudent()[studentID]
	if !ok {
		return nil, fmt.Errorf("%w: no usable score rows for student %s", ErrNotFound, studentID)
	}
	return row, nil
}

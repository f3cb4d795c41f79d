// Package pipeline runs the batch training cycle: engineer features from
// the engagement score history, fit and gate the risk model, then replace
// the prediction table atomically and persist the model artifact.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/explain"
	"github.com/edumind/engagement-tracker/internal/features"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/ml"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
	"github.com/edumind/engagement-tracker/internal/types"
)

var (
	// ErrInsufficientTrainingData means the filtered training set is too
	// small or too one-sided to fit anything trustworthy.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrModelRejected means the trained model failed the evaluation gate
	// and nothing was written.
	ErrModelRejected = errors.New("model rejected by evaluation gate")
)

const topImportanceCount = 5

type ComputeDeps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Scores      repos.EngagementScoreRepo
	Predictions repos.PredictionRepo

	// Interventions, when set, gets a pending advisor-outreach row for
	// every High-risk student without one already open.
	Interventions repos.InterventionLogRepo
}

type ComputeInput struct {
	Hyperparams Hyperparams

	// ArtifactPath persists the trained model when non-empty. The
	// artifact is written before predictions so a serving process never
	// sees predictions from a model it cannot load.
	ArtifactPath string

	HorizonDays int

	// Now pins the cycle timestamp; zero means wall clock.
	Now time.Time
}

type ComputeOutput struct {
	FeatureRows   int
	SkippedRows   int
	TrainingRows  int
	DroppedBurnIn int
	TrainSize     int
	TestSize      int

	Accuracy         float64
	ROCAUC           float64
	BaselineAccuracy float64

	PredictionsWritten  int
	StudentsScored      int
	AtRiskCount         int
	InterventionsOpened int
	ByLevel             map[string]int
	ModelVersion        string
}

// Compute executes one full training cycle. It either replaces the whole
// prediction table or, on any failure, leaves it untouched.
func Compute(ctx context.Context, deps ComputeDeps, input ComputeInput) (ComputeOutput, error) {
	out := ComputeOutput{ByLevel: map[string]int{}}
	if deps.DB == nil || deps.Scores == nil || deps.Predictions == nil {
		return out, fmt.Errorf("pipeline: missing deps")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	hp := withDefaults(input.Hyperparams)
	if input.HorizonDays <= 0 {
		input.HorizonDays = 7
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	log := deps.Log.With("job", "risk_training")

	records, err := deps.Scores.ListAllOrdered(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("loading engagement scores: %w", err)
	}
	set := features.NewEngineer(deps.Log).Build(records)
	out.FeatureRows = len(set.Rows)
	out.SkippedRows = set.Skipped

	var X [][]float64
	var y []int
	for _, row := range set.Rows {
		if !row.TrainingEligible() {
			continue
		}
		X = append(X, row.Vector())
		y = append(y, risk.Label(row.EngagementScore))
	}
	out.TrainingRows = len(X)
	out.DroppedBurnIn = out.FeatureRows - out.TrainingRows
	if out.FeatureRows > 0 {
		dropRate := float64(out.DroppedBurnIn) / float64(out.FeatureRows)
		log.Info("Built training set",
			"feature_rows", out.FeatureRows,
			"training_rows", out.TrainingRows,
			"burn_in_drop_rate", fmt.Sprintf("%.2f", dropRate))
	}

	if len(X) < hp.MinTrainingRows {
		return out, fmt.Errorf("%w: %d eligible rows, need %d",
			ErrInsufficientTrainingData, len(X), hp.MinTrainingRows)
	}
	positives := 0
	for _, label := range y {
		positives += label
	}
	if positives == 0 || positives == len(y) {
		return out, fmt.Errorf("%w: training labels are single-class (%d of %d at-risk)",
			ErrInsufficientTrainingData, positives, len(y))
	}

	trainIdx, testIdx := ml.StratifiedSplit(y, hp.TestFraction, hp.Seed)
	out.TrainSize = len(trainIdx)
	out.TestSize = len(testIdx)
	Xtr, ytr := gather(X, y, trainIdx)
	Xte, yte := gather(X, y, testIdx)

	model := ml.NewGradientBoosting(hp.Seed)
	model.NEstimators = hp.NEstimators
	model.LearningRate = hp.LearningRate
	model.MaxDepth = hp.MaxDepth
	model.MinSamplesSplit = hp.MinSamplesSplit
	model.MinSamplesLeaf = hp.MinSamplesLeaf
	if err := model.Fit(Xtr, ytr); err != nil {
		return out, fmt.Errorf("fitting model: %w", err)
	}

	if err := evaluate(model, Xte, yte, &out); err != nil {
		return out, err
	}
	log.Info("Model passed evaluation gate",
		"accuracy", fmt.Sprintf("%.4f", out.Accuracy),
		"roc_auc", fmt.Sprintf("%.4f", out.ROCAUC),
		"baseline_accuracy", fmt.Sprintf("%.4f", out.BaselineAccuracy))

	out.ModelVersion = ml.ModelVersion
	if input.ArtifactPath != "" {
		artifact := &ml.Artifact{
			ModelVersion: ml.ModelVersion,
			ModelType:    ml.ModelType,
			TrainedAt:    now,
			FeatureNames: features.FeatureNames,
			Metrics: ml.Metrics{
				Accuracy:     out.Accuracy,
				ROCAUC:       out.ROCAUC,
				TrainRows:    out.TrainSize,
				TestRows:     out.TestSize,
				PositiveRate: float64(positives) / float64(len(y)),
			},
			Model: model,
		}
		if err := artifact.Save(input.ArtifactPath); err != nil {
			return out, fmt.Errorf("persisting model artifact: %w", err)
		}
		log.Info("Saved model artifact", "path", input.ArtifactPath)
	}

	rows, err := buildPredictions(model, set, now, input.HorizonDays)
	if err != nil {
		return out, err
	}
	out.PredictionsWritten = len(rows)

	// The cohort snapshot counts each student once, by their newest row.
	latest := latestPrediction(rows)
	out.StudentsScored = len(latest)
	for _, row := range latest {
		out.ByLevel[row.RiskLevel]++
		if row.AtRisk {
			out.AtRiskCount++
		}
	}

	// The clear and the bulk insert share one transaction: readers see
	// either the previous cycle's predictions or this one's, never a
	// half-written table.
	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deps.Predictions.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := deps.Predictions.CreateInBatches(ctx, tx, rows); err != nil {
			return err
		}
		if deps.Interventions == nil {
			return nil
		}
		opened, err := openInterventions(ctx, tx, deps.Interventions, latest, now)
		out.InterventionsOpened = opened
		return err
	})
	if err != nil {
		return out, fmt.Errorf("replacing predictions: %w", err)
	}

	log.Info("Training cycle complete",
		"predictions_written", out.PredictionsWritten,
		"students_scored", out.StudentsScored,
		"at_risk", out.AtRiskCount,
		"interventions_opened", out.InterventionsOpened,
		"by_level", out.ByLevel)
	return out, nil
}

// latestPrediction keeps each student's newest row of the cycle.
func latestPrediction(rows []*types.DisengagementPrediction) map[string]*types.DisengagementPrediction {
	latest := make(map[string]*types.DisengagementPrediction)
	for _, row := range rows {
		prev, ok := latest[row.StudentID]
		if !ok || row.PredictionDate.After(prev.PredictionDate) {
			latest[row.StudentID] = row
		}
	}
	return latest
}

// openInterventions flags students whose newest prediction is High risk
// for advisor follow-up. A student with an outreach still pending from an
// earlier cycle is not flagged again.
func openInterventions(ctx context.Context, tx *gorm.DB, interventions repos.InterventionLogRepo, latest map[string]*types.DisengagementPrediction, now time.Time) (int, error) {
	const outreach = "advisor_outreach"
	studentIDs := make([]string, 0, len(latest))
	for id := range latest {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	opened := 0
	for _, studentID := range studentIDs {
		row := latest[studentID]
		if row.RiskLevel != risk.LevelHigh {
			continue
		}
		pending, err := interventions.HasPending(ctx, tx, row.StudentID, outreach)
		if err != nil {
			return opened, fmt.Errorf("checking pending interventions for %s: %w", row.StudentID, err)
		}
		if pending {
			continue
		}
		predictionID := row.ID
		err = interventions.Create(ctx, tx, &types.InterventionLog{
			ID:                  uuid.New(),
			StudentID:           row.StudentID,
			PredictionID:        &predictionID,
			InterventionType:    outreach,
			InterventionTitle:   "High disengagement risk",
			InterventionContent: fmt.Sprintf("Risk probability %.2f over the next %d days; advisor contact recommended.", row.RiskProbability, row.PredictionHorizonDays),
			Status:              types.InterventionStatusPending,
			TriggeredBy:         "system",
			CreatedAt:           now,
		})
		if err != nil {
			return opened, fmt.Errorf("opening intervention for %s: %w", row.StudentID, err)
		}
		opened++
	}
	return opened, nil
}

func evaluate(model *ml.GradientBoosting, Xte [][]float64, yte []int, out *ComputeOutput) error {
	preds := make([]int, len(yte))
	scores := make([]float64, len(yte))
	for i, x := range Xte {
		p := model.PredictProba(x)[1]
		scores[i] = p
		if p >= 0.5 {
			preds[i] = 1
		}
	}
	out.Accuracy = ml.Accuracy(yte, preds)

	positives := 0
	for _, label := range yte {
		positives += label
	}
	out.BaselineAccuracy = float64(len(yte)-positives) / float64(len(yte))
	if positives > len(yte)-positives {
		out.BaselineAccuracy = float64(positives) / float64(len(yte))
	}

	auc, err := ml.ROCAUC(yte, scores)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelRejected, err)
	}
	out.ROCAUC = auc

	if out.Accuracy < out.BaselineAccuracy {
		return fmt.Errorf("%w: accuracy %.4f below majority baseline %.4f",
			ErrModelRejected, out.Accuracy, out.BaselineAccuracy)
	}
	if auc <= 0.5 {
		return fmt.Errorf("%w: roc-auc %.4f is no better than chance", ErrModelRejected, auc)
	}
	return nil
}

// buildPredictions scores every feature row, one prediction per
// (student, date), dated by the row it was scored from. Students whose
// history was too short to train on still get scored; their missing
// windowed features impute to zero.
func buildPredictions(model *ml.GradientBoosting, set *features.Set, now time.Time, horizonDays int) ([]*types.DisengagementPrediction, error) {
	importanceJSON, err := topImportanceJSON(model)
	if err != nil {
		return nil, err
	}

	rows := make([]*types.DisengagementPrediction, 0, len(set.Rows))
	for _, row := range set.Rows {
		p := model.PredictProba(row.Vector())[1]

		factors, err := json.Marshal(explain.RuleFactors(row))
		if err != nil {
			return nil, fmt.Errorf("encoding contributing factors for %s: %w", row.StudentID, err)
		}
		rows = append(rows, &types.DisengagementPrediction{
			ID:                    uuid.New(),
			StudentID:             row.StudentID,
			PredictionDate:        row.Date,
			AtRisk:                p >= 0.5,
			RiskProbability:       p,
			RiskLevel:             risk.Categorize(p),
			ContributingFactors:   datatypes.JSON(factors),
			FeatureImportance:     importanceJSON,
			ModelVersion:          ml.ModelVersion,
			ModelType:             ml.ModelType,
			ConfidenceScore:       risk.Confidence(p),
			PredictionHorizonDays: horizonDays,
			CreatedAt:             now,
		})
	}
	return rows, nil
}

// topImportanceJSON ranks the model's feature importances and encodes the
// strongest few once; every prediction row of the cycle shares the bytes.
func topImportanceJSON(model *ml.GradientBoosting) (datatypes.JSON, error) {
	imp := model.FeatureImportances()
	weights := make([]types.FeatureWeight, len(imp))
	for i, v := range imp {
		weights[i] = types.FeatureWeight{Feature: features.FeatureNames[i], Importance: v}
	}
	sort.SliceStable(weights, func(a, b int) bool {
		return weights[a].Importance > weights[b].Importance
	})
	if len(weights) > topImportanceCount {
		weights = weights[:topImportanceCount]
	}
	data, err := json.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("encoding feature importance: %w", err)
	}
	return datatypes.JSON(data), nil
}

func withDefaults(hp Hyperparams) Hyperparams {
	d := DefaultHyperparams()
	if hp.NEstimators <= 0 {
		hp.NEstimators = d.NEstimators
	}
	if hp.LearningRate <= 0 {
		hp.LearningRate = d.LearningRate
	}
	if hp.MaxDepth <= 0 {
		hp.MaxDepth = d.MaxDepth
	}
	if hp.MinSamplesSplit <= 0 {
		hp.MinSamplesSplit = d.MinSamplesSplit
	}
	if hp.MinSamplesLeaf <= 0 {
		hp.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if hp.Seed == 0 {
		hp.Seed = d.Seed
	}
	if hp.TestFraction <= 0 || hp.TestFraction >= 1 {
		hp.TestFraction = d.TestFraction
	}
	if hp.MinTrainingRows <= 0 {
		hp.MinTrainingRows = d.MinTrainingRows
	}
	return hp
}

func gather(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

// Command train runs one batch training cycle: it fits the disengagement
// model on the full engagement score history, replaces the prediction
// table and writes the model artifact the API server loads.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/edumind/engagement-tracker/internal/cache"
	"github.com/edumind/engagement-tracker/internal/db"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/pipeline"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := pipeline.LoadConfig(log)
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	timeoutMinutes := utils.GetEnvAsInt("TRAIN_TIMEOUT_MINUTES", 30, log)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMinutes)*time.Minute)
	defer cancel()

	deps := pipeline.ComputeDeps{
		DB:            thePG,
		Log:           log,
		Scores:        repos.NewEngagementScoreRepo(thePG, log),
		Predictions:   repos.NewPredictionRepo(thePG, log),
		Interventions: repos.NewInterventionLogRepo(thePG, log),
	}
	out, err := pipeline.Compute(ctx, deps, pipeline.ComputeInput{
		Hyperparams:  cfg.Hyperparams,
		ArtifactPath: cfg.ArtifactPath,
		HorizonDays:  cfg.HorizonDays,
	})
	if err != nil {
		log.Fatal("Training cycle failed", "error", err)
	}

	// Cached predictions belong to the replaced cycle.
	if predCache, cacheErr := cache.NewPredictionCache(log); cacheErr == nil {
		if err := predCache.InvalidateAll(ctx); err != nil {
			log.Warn("Cache invalidation failed", "error", err)
		}
		_ = predCache.Close()
	} else {
		log.Debug("No prediction cache to invalidate", "error", cacheErr)
	}

	log.Info("Training cycle succeeded",
		"model_version", out.ModelVersion,
		"training_rows", out.TrainingRows,
		"accuracy", fmt.Sprintf("%.4f", out.Accuracy),
		"roc_auc", fmt.Sprintf("%.4f", out.ROCAUC),
		"predictions_written", out.PredictionsWritten,
		"students_scored", out.StudentsScored,
		"at_risk", out.AtRiskCount,
		"interventions_opened", out.InterventionsOpened)
}

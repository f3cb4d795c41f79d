package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/edumind/engagement-tracker/internal/cache"
	"github.com/edumind/engagement-tracker/internal/db"
	"github.com/edumind/engagement-tracker/internal/handlers"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/middleware"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/server"
	"github.com/edumind/engagement-tracker/internal/services"
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

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	eventRepo := repos.NewActivityEventRepo(thePG, log)
	metricRepo := repos.NewDailyMetricRepo(thePG, log)
	scoreRepo := repos.NewEngagementScoreRepo(thePG, log)
	predRepo := repos.NewPredictionRepo(thePG, log)
	scheduleRepo := repos.NewStudyScheduleRepo(thePG, log)
	interventionRepo := repos.NewInterventionLogRepo(thePG, log)

	// Cache
	predCache, err := cache.NewPredictionCache(log)
	if err != nil {
		log.Warn("Prediction cache unavailable, serving without it", "error", err)
		predCache = cache.NewNoopCache()
	}
	defer predCache.Close()

	// Services
	log.Info("Setting up Services from main...")
	engagementService := services.NewEngagementService(thePG, log, eventRepo, metricRepo, scoreRepo)
	predictionService := services.NewPredictionService(thePG, log, predRepo, predCache)
	schedulingService := services.NewSchedulingService(thePG, log, scoreRepo, predRepo, scheduleRepo)
	interventionService := services.NewInterventionService(thePG, log, interventionRepo)

	// A server without a loadable model must not come up and answer
	// prediction traffic with guesses.
	artifactPath := utils.GetEnv("MODEL_ARTIFACT_PATH", "models/disengagement.json", log)
	scoringService, err := services.NewScoringService(log, scoreRepo, artifactPath)
	if err != nil {
		log.Fatal("Model artifact load failed", "path", artifactPath, "error", err)
	}

	// Middleware + handlers
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Fatal("Auth middleware init failed", "error", err)
	}
	engagementHandler := handlers.NewEngagementHandler(log, engagementService)
	predictionHandler := handlers.NewPredictionHandler(log, predictionService, scoringService)
	scheduleHandler := handlers.NewScheduleHandler(log, schedulingService)
	interventionHandler := handlers.NewInterventionHandler(log, interventionService)

	var origins []string
	if raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMiddleware,
		EngagementHandler:   engagementHandler,
		PredictionHandler:   predictionHandler,
		ScheduleHandler:     scheduleHandler,
		InterventionHandler: interventionHandler,
		AllowOrigins:        origins,
		Mode:                logMode,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}

package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edumind/engagement-tracker/internal/handlers"
	"github.com/edumind/engagement-tracker/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleware
	EngagementHandler   *handlers.EngagementHandler
	PredictionHandler   *handlers.PredictionHandler
	ScheduleHandler     *handlers.ScheduleHandler
	InterventionHandler *handlers.InterventionHandler
	AllowOrigins        []string
	Mode                string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if strings.EqualFold(cfg.Mode, "prod") || strings.EqualFold(cfg.Mode, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5174"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Ingest
	api.POST("/events", cfg.EngagementHandler.IngestEvents)

	// Engagement
	api.GET("/students/:studentID/score", cfg.EngagementHandler.GetScore)
	api.GET("/students/:studentID/score/latest", cfg.EngagementHandler.GetLatestScore)
	api.GET("/students/:studentID/score/history", cfg.EngagementHandler.GetScoreHistory)
	api.GET("/students/:studentID/summary", cfg.EngagementHandler.GetSummary)
	api.GET("/students/:studentID/metrics", cfg.EngagementHandler.GetDailyMetrics)

	// Predictions
	api.GET("/students/:studentID/prediction", cfg.PredictionHandler.GetLatest)
	api.GET("/students/:studentID/prediction/history", cfg.PredictionHandler.GetHistory)
	api.GET("/students/:studentID/prediction/live", cfg.PredictionHandler.GetLive)
	api.GET("/students/:studentID/explanation", cfg.PredictionHandler.GetExplanation)
	api.GET("/students/:studentID/trajectory", cfg.PredictionHandler.GetTrajectory)
	api.GET("/predictions/at-risk", cfg.PredictionHandler.ListAtRisk)
	api.GET("/predictions/statistics", cfg.PredictionHandler.GetStatistics)
	api.POST("/predictions/score", cfg.PredictionHandler.ScoreFeatures)
	api.POST("/predictions/explain", cfg.PredictionHandler.ExplainFeatures)
	api.GET("/model/info", cfg.PredictionHandler.GetModelInfo)

	// Interventions
	api.GET("/students/:studentID/interventions", cfg.InterventionHandler.List)
	api.POST("/students/:studentID/interventions", cfg.InterventionHandler.Record)
	api.PATCH("/interventions/:interventionID/delivered", cfg.InterventionHandler.MarkDelivered)

	// Schedules
	api.POST("/students/:studentID/schedule", cfg.ScheduleHandler.Generate)
	api.GET("/students/:studentID/schedule", cfg.ScheduleHandler.GetWeek)
	api.GET("/students/:studentID/schedule/latest", cfg.ScheduleHandler.GetLatest)
	api.GET("/students/:studentID/schedule/summary", cfg.ScheduleHandler.GetSummary)
	api.GET("/students/:studentID/schedule/features", cfg.ScheduleHandler.GetFeatures)
	api.DELETE("/students/:studentID/schedule", cfg.ScheduleHandler.DeleteWeek)

	return router
}

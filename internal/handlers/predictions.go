package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edumind/engagement-tracker/internal/explain"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/services"
)

type PredictionHandler struct {
	log         *logger.Logger
	predictions services.PredictionService
	scoring     services.ScoringService
}

func NewPredictionHandler(log *logger.Logger, predictions services.PredictionService, scoring services.ScoringService) *PredictionHandler {
	return &PredictionHandler{
		log:         log.With("handler", "PredictionHandler"),
		predictions: predictions,
		scoring:     scoring,
	}
}

func (h *PredictionHandler) GetLatest(c *gin.Context) {
	pred, err := h.predictions.GetLatest(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, pred)
}

func (h *PredictionHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	history, err := h.predictions.GetHistory(c.Request.Context(), c.Param("studentID"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": c.Param("studentID"), "predictions": history})
}

// GetLive scores the student on demand from their current history rather
// than reading the last batch cycle's row.
func (h *PredictionHandler) GetLive(c *gin.Context) {
	score, err := h.scoring.ScoreStudent(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// GetExplanation returns the model attribution for a student. Degraded
// explainability is not an error: the response says so and the caller
// still has the prediction endpoints.
func (h *PredictionHandler) GetExplanation(c *gin.Context) {
	exp, err := h.scoring.ExplainStudent(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		if errors.Is(err, explain.ErrExplainabilityDegraded) {
			h.log.Warn("Explainability degraded", "student_id", c.Param("studentID"), "error", err)
			c.JSON(http.StatusOK, gin.H{"explanation": nil, "degraded": true})
			return
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": exp, "degraded": false})
}

func (h *PredictionHandler) ListAtRisk(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	students, err := h.predictions.ListAtRisk(c.Request.Context(), days, c.Query("risk_level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(students), "students": students})
}

func (h *PredictionHandler) GetStatistics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := h.predictions.GetStatistics(c.Request.Context(), days)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PredictionHandler) GetTrajectory(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	traj, err := h.predictions.GetTrajectory(c.Request.Context(), c.Param("studentID"), days)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, traj)
}

func (h *PredictionHandler) GetModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.scoring.ModelInfo())
}

type featureVectorRequest struct {
	Features map[string]float64 `json:"features" binding:"required"`
}

// ScoreFeatures scores a raw feature vector, for callers that engineer
// their own features or want to probe what-if inputs.
func (h *PredictionHandler) ScoreFeatures(c *gin.Context) {
	var req featureVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	score, err := h.scoring.ScoreFeatures(req.Features)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, score)
}

func (h *PredictionHandler) ExplainFeatures(c *gin.Context) {
	var req featureVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exp, err := h.scoring.ExplainFeatures(req.Features)
	if err != nil {
		if errors.Is(err, explain.ErrExplainabilityDegraded) {
			h.log.Warn("Explainability degraded", "error", err)
			c.JSON(http.StatusOK, gin.H{"explanation": nil, "degraded": true})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": exp, "degraded": false})
}

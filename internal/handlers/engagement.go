package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/services"
)

type EngagementHandler struct {
	log     *logger.Logger
	service services.EngagementService
}

func NewEngagementHandler(log *logger.Logger, service services.EngagementService) *EngagementHandler {
	return &EngagementHandler{log: log.With("handler", "EngagementHandler"), service: service}
}

type ingestRequest struct {
	Events []services.EventInput `json:"events" binding:"required"`
}

func (h *EngagementHandler) IngestEvents(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.service.IngestEvents(c.Request.Context(), req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ingested": n})
}

func (h *EngagementHandler) GetLatestScore(c *gin.Context) {
	score, err := h.service.GetLatestScore(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// GetScore returns the score for one specific date.
func (h *EngagementHandler) GetScore(c *gin.Context) {
	date, ok := parseDateQuery(c, "date")
	if !ok {
		return
	}
	if date.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing date, expected YYYY-MM-DD"})
		return
	}
	score, err := h.service.GetScoreByDate(c.Request.Context(), c.Param("studentID"), date)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (h *EngagementHandler) GetScoreHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "90"))
	history, err := h.service.GetScoreHistory(c.Request.Context(), c.Param("studentID"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": c.Param("studentID"), "scores": history})
}

func (h *EngagementHandler) GetSummary(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	summary, err := h.service.GetSummary(c.Request.Context(), c.Param("studentID"), days)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *EngagementHandler) GetDailyMetrics(c *gin.Context) {
	from, ok := parseDateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to")
	if !ok {
		return
	}
	metrics, err := h.service.GetDailyMetrics(c.Request.Context(), c.Param("studentID"), from, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": c.Param("studentID"), "metrics": metrics})
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. On a
// malformed value it writes the 400 itself and reports false.
func parseDateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ", expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return parsed, true
}

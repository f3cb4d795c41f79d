package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/middleware"
	"github.com/edumind/engagement-tracker/internal/services"
)

type InterventionHandler struct {
	log     *logger.Logger
	service services.InterventionService
}

func NewInterventionHandler(log *logger.Logger, service services.InterventionService) *InterventionHandler {
	return &InterventionHandler{log: log.With("handler", "InterventionHandler"), service: service}
}

func (h *InterventionHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	interventions, err := h.service.ListByStudent(c.Request.Context(), c.Param("studentID"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": c.Param("studentID"), "interventions": interventions})
}

// Record stores a staff-initiated intervention. The training cycle opens
// its own advisor-outreach rows; this endpoint covers everything else.
func (h *InterventionHandler) Record(c *gin.Context) {
	var input services.InterventionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.StudentID = c.Param("studentID")
	if input.TriggeredBy == "" {
		if caller, ok := c.Get(middleware.CallerKey); ok {
			input.TriggeredBy, _ = caller.(string)
		}
	}
	row, err := h.service.Record(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *InterventionHandler) MarkDelivered(c *gin.Context) {
	id, err := uuid.Parse(c.Param("interventionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid intervention id"})
		return
	}
	row, err := h.service.MarkDelivered(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

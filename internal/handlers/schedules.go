package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/services"
	"github.com/edumind/engagement-tracker/internal/types"
)

type ScheduleHandler struct {
	log     *logger.Logger
	service services.SchedulingService
}

func NewScheduleHandler(log *logger.Logger, service services.SchedulingService) *ScheduleHandler {
	return &ScheduleHandler{log: log.With("handler", "ScheduleHandler"), service: service}
}

// Generate builds (or rebuilds) the weekly plan. week_start defaults to
// the upcoming Monday.
func (h *ScheduleHandler) Generate(c *gin.Context) {
	weekStart, ok := parseDateQuery(c, "week_start")
	if !ok {
		return
	}
	if weekStart.IsZero() {
		weekStart = nextMonday(time.Now().UTC())
	}
	schedule, err := h.service.GenerateWeekly(c.Request.Context(), c.Param("studentID"), weekStart)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (h *ScheduleHandler) GetWeek(c *gin.Context) {
	schedule, ok := h.resolveSchedule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// GetSummary returns the plan parameters and reasoning without the full
// day-by-day session list.
func (h *ScheduleHandler) GetSummary(c *gin.Context) {
	schedule, ok := h.resolveSchedule(c)
	if !ok {
		return
	}
	var plan services.WeeklyPlan
	if err := json.Unmarshal(schedule.DailySchedules, &plan); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id":                  schedule.StudentID,
		"week_start_date":             schedule.WeekStartDate,
		"week_end_date":               schedule.WeekEndDate,
		"session_length_minutes":      schedule.SessionLengthMinutes,
		"sessions_per_day":            schedule.SessionsPerDay,
		"total_study_minutes_per_day": schedule.TotalStudyMinutesPerDay,
		"load_reduction_factor":       schedule.LoadReductionFactor,
		"reasoning":                   plan.Reasoning,
	})
}

// GetFeatures returns the feature snapshot the plan was derived from.
func (h *ScheduleHandler) GetFeatures(c *gin.Context) {
	schedule, ok := h.resolveSchedule(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id":      schedule.StudentID,
		"week_start_date": schedule.WeekStartDate,
		"features_used":   schedule.FeaturesUsed,
	})
}

// resolveSchedule loads the schedule for the week_start query parameter,
// or the student's most recent one when the parameter is absent. On any
// failure it writes the response itself and reports false.
func (h *ScheduleHandler) resolveSchedule(c *gin.Context) (*types.StudySchedule, bool) {
	weekStart, ok := parseDateQuery(c, "week_start")
	if !ok {
		return nil, false
	}
	var (
		schedule *types.StudySchedule
		err      error
	)
	if weekStart.IsZero() {
		schedule, err = h.service.GetLatest(c.Request.Context(), c.Param("studentID"))
	} else {
		schedule, err = h.service.GetWeek(c.Request.Context(), c.Param("studentID"), weekStart)
	}
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return schedule, true
}

func (h *ScheduleHandler) GetLatest(c *gin.Context) {
	schedule, err := h.service.GetLatest(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *ScheduleHandler) DeleteWeek(c *gin.Context) {
	weekStart, ok := parseDateQuery(c, "week_start")
	if !ok {
		return
	}
	if weekStart.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing week_start, expected YYYY-MM-DD"})
		return
	}
	if err := h.service.DeleteWeek(c.Request.Context(), c.Param("studentID"), weekStart); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func nextMonday(from time.Time) time.Time {
	from = from.Truncate(24 * time.Hour)
	offset := (int(time.Monday) - int(from.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return from.AddDate(0, 0, offset)
}

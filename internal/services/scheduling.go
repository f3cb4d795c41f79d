package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/features"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
	"github.com/edumind/engagement-tracker/internal/types"
)

// Schedule parameter bounds. Sessions outside these ranges are either too
// short to be useful or long enough to burn a struggling student out.
const (
	minSessionMinutes = 15
	maxSessionMinutes = 90
	minSessionsPerDay = 1
	maxSessionsPerDay = 5
	minLoadReduction  = 0.5
	maxLoadReduction  = 1.0
)

// StudySession is one planned block within a day.
type StudySession struct {
	Index         int    `json:"index"`
	LengthMinutes int    `json:"length_minutes"`
	Focus         string `json:"focus"`
}

// DailyPlan is one day of the generated week.
type DailyPlan struct {
	Date         time.Time      `json:"date"`
	DayName      string         `json:"day_name"`
	Sessions     []StudySession `json:"sessions"`
	TotalMinutes int            `json:"total_minutes"`
	LightDay     bool           `json:"light_day"`
}

// WeeklyPlan bundles the seven days with the reasoning behind the chosen
// parameters, stored alongside the schedule row for auditability.
type WeeklyPlan struct {
	Days      []DailyPlan `json:"days"`
	Reasoning []string    `json:"reasoning"`
}

type SchedulingService interface {
	GenerateWeekly(ctx context.Context, studentID string, weekStart time.Time) (*types.StudySchedule, error)
	GetWeek(ctx context.Context, studentID string, weekStart time.Time) (*types.StudySchedule, error)
	GetLatest(ctx context.Context, studentID string) (*types.StudySchedule, error)
	DeleteWeek(ctx context.Context, studentID string, weekStart time.Time) error
}

type schedulingService struct {
	db           *gorm.DB
	log          *logger.Logger
	scoreRepo    repos.EngagementScoreRepo
	predRepo     repos.PredictionRepo
	scheduleRepo repos.StudyScheduleRepo
	engineer     *features.Engineer
}

func NewSchedulingService(db *gorm.DB, log *logger.Logger, scoreRepo repos.EngagementScoreRepo, predRepo repos.PredictionRepo, scheduleRepo repos.StudyScheduleRepo) SchedulingService {
	serviceLog := log.With("service", "SchedulingService")
	return &schedulingService{
		db:           db,
		log:          serviceLog,
		scoreRepo:    scoreRepo,
		predRepo:     predRepo,
		scheduleRepo: scheduleRepo,
		engineer:     features.NewEngineer(log),
	}
}

// GenerateWeekly builds and upserts the study plan for the week starting
// at weekStart, derived from the student's latest feature row and latest
// risk prediction. Regenerating an existing week overwrites it.
func (s *schedulingService) GenerateWeekly(ctx context.Context, studentID string, weekStart time.Time) (*types.StudySchedule, error) {
	history, err := s.scoreRepo.ListByStudent(ctx, nil, studentID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading score history: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: no engagement scores for student %s", ErrNotFound, studentID)
	}
	row, ok := s.engineer.Build(history).LatestPerStudent()[studentID]
	if !ok {
		return nil, fmt.Errorf("%w: no usable score rows for student %s", ErrNotFound, studentID)
	}

	riskLevel := risk.LevelLow
	pred, err := s.predRepo.LatestByStudent(ctx, nil, studentID)
	switch {
	case err == nil:
		riskLevel = pred.RiskLevel
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.log.Debug("No prediction for student, assuming low risk", "student_id", studentID)
	default:
		return nil, fmt.Errorf("loading latest prediction: %w", err)
	}

	weekStart = weekStart.Truncate(24 * time.Hour)
	length, perDay, load, plan := buildWeeklyPlan(row, riskLevel, weekStart)

	featuresUsed, err := json.Marshal(row.FeatureMap())
	if err != nil {
		return nil, fmt.Errorf("encoding features snapshot: %w", err)
	}
	daily, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding daily schedules: %w", err)
	}

	now := time.Now().UTC()
	schedule := &types.StudySchedule{
		ID:                      uuid.New(),
		StudentID:               studentID,
		WeekStartDate:           weekStart,
		WeekEndDate:             weekStart.AddDate(0, 0, 6),
		SessionLengthMinutes:    length,
		SessionsPerDay:          perDay,
		TotalStudyMinutesPerDay: int(float64(length*perDay) * load),
		LoadReductionFactor:     load,
		FeaturesUsed:            datatypes.JSON(featuresUsed),
		DailySchedules:          datatypes.JSON(daily),
		GenerationMethod:        "engagement_based",
		Version:                 "v1.0",
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.scheduleRepo.Upsert(ctx, nil, schedule); err != nil {
		return nil, fmt.Errorf("storing schedule: %w", err)
	}
	s.log.Info("Generated weekly schedule",
		"student_id", studentID,
		"week_start", weekStart.Format("2006-01-02"),
		"risk_level", riskLevel,
		"session_length", length,
		"sessions_per_day", perDay,
		"load_reduction", load)
	return schedule, nil
}

func (s *schedulingService) GetWeek(ctx context.Context, studentID string, weekStart time.Time) (*types.StudySchedule, error) {
	schedule, err := s.scheduleRepo.GetByStudentAndWeek(ctx, nil, studentID, weekStart.Truncate(24*time.Hour))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no schedule for student %s that week", ErrNotFound, studentID)
		}
		return nil, err
	}
	return schedule, nil
}

func (s *schedulingService) GetLatest(ctx context.Context, studentID string) (*types.StudySchedule, error) {
	schedule, err := s.scheduleRepo.LatestByStudent(ctx, nil, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no schedules for student %s", ErrNotFound, studentID)
		}
		return nil, err
	}
	return schedule, nil
}

func (s *schedulingService) DeleteWeek(ctx context.Context, studentID string, weekStart time.Time) error {
	weekStart = weekStart.Truncate(24 * time.Hour)
	if _, err := s.scheduleRepo.GetByStudentAndWeek(ctx, nil, studentID, weekStart); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no schedule for student %s that week", ErrNotFound, studentID)
		}
		return err
	}
	if err := s.scheduleRepo.DeleteByStudentAndWeek(ctx, nil, studentID, weekStart); err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	s.log.Info("Deleted weekly schedule",
		"student_id", studentID,
		"week_start", weekStart.Format("2006-01-02"))
	return nil
}

// buildWeeklyPlan derives the schedule parameters from the feature row and
// risk level. Struggling students get shorter, more frequent sessions at a
// reduced total load; engaged students get longer, fewer blocks.
func buildWeeklyPlan(row *features.Row, riskLevel string, weekStart time.Time) (length, perDay int, load float64, plan WeeklyPlan) {
	switch riskLevel {
	case risk.LevelHigh:
		length, perDay, load = 20, 4, 0.6
		plan.Reasoning = append(plan.Reasoning, "High disengagement risk: short frequent sessions at reduced load")
	case risk.LevelMedium:
		length, perDay, load = 35, 3, 0.8
		plan.Reasoning = append(plan.Reasoning, "Medium disengagement risk: moderate sessions at slightly reduced load")
	default:
		length, perDay, load = 50, 2, 1.0
		plan.Reasoning = append(plan.Reasoning, "Low disengagement risk: standard session plan")
	}

	if row.Volatility7 > 15 {
		length -= 10
		plan.Reasoning = append(plan.Reasoning, "Volatile engagement week: shortened sessions to lower the commitment per block")
	}
	if row.IsDeclining == 1 {
		load -= 0.1
		plan.Reasoning = append(plan.Reasoning, "Declining trend: trimmed total daily load")
	}
	if row.ConsecutiveLowDays >= 5 {
		load -= 0.1
		perDay++
		plan.Reasoning = append(plan.Reasoning, "Extended low-engagement streak: smaller daily commitment split across more touchpoints")
	}

	length = clampInt(length, minSessionMinutes, maxSessionMinutes)
	perDay = clampInt(perDay, minSessionsPerDay, maxSessionsPerDay)
	load = clampFloat(load, minLoadReduction, maxLoadReduction)

	assignmentCatchup := row.AssignmentScore < 50
	if assignmentCatchup {
		plan.Reasoning = append(plan.Reasoning, "Low assignment score: assignment catch-up front-loaded into the first days")
	}

	for d := 0; d < 7; d++ {
		date := weekStart.AddDate(0, 0, d)
		day := DailyPlan{Date: date, DayName: date.Weekday().String()}

		sessions := perDay
		// The reduced-load weeks keep one genuinely light day so the
		// student gets a visible break.
		if load < 0.8 && date.Weekday() == time.Sunday {
			day.LightDay = true
			sessions = 1
		}
		for i := 0; i < sessions; i++ {
			focus := "coursework"
			if assignmentCatchup && d < 2 {
				focus = "assignment_catchup"
			}
			if day.LightDay {
				focus = "review"
			}
			day.Sessions = append(day.Sessions, StudySession{
				Index:         i + 1,
				LengthMinutes: length,
				Focus:         focus,
			})
			day.TotalMinutes += length
		}
		plan.Days = append(plan.Days, day)
	}
	return length, perDay, load, plan
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

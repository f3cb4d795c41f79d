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

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/types"
)

// ErrNotFound is the service-level miss; handlers translate it to 404.
var ErrNotFound = errors.New("not found")

// EventInput is one activity event as submitted by a platform service.
type EventInput struct {
	StudentID      string         `json:"student_id" binding:"required"`
	EventType      string         `json:"event_type" binding:"required"`
	EventTimestamp time.Time      `json:"event_timestamp" binding:"required"`
	SessionID      *string        `json:"session_id,omitempty"`
	EventData      map[string]any `json:"event_data,omitempty"`
	SourceService  string         `json:"source_service,omitempty"`
}

// EngagementSummary condenses a student's recent window for dashboards.
type EngagementSummary struct {
	StudentID    string  `json:"student_id"`
	Days         int     `json:"days"`
	AverageScore float64 `json:"average_score"`
	MinScore     float64 `json:"min_score"`
	MaxScore     float64 `json:"max_score"`
	LatestScore  float64 `json:"latest_score"`
	LatestLevel  string  `json:"latest_level"`
	Trend        string  `json:"trend,omitempty"`
}

type EngagementService interface {
	IngestEvents(ctx context.Context, inputs []EventInput) (int, error)
	GetLatestScore(ctx context.Context, studentID string) (*types.EngagementScore, error)
	GetScoreByDate(ctx context.Context, studentID string, date time.Time) (*types.EngagementScore, error)
	GetScoreHistory(ctx context.Context, studentID string, limit int) ([]*types.EngagementScore, error)
	GetSummary(ctx context.Context, studentID string, days int) (*EngagementSummary, error)
	GetDailyMetrics(ctx context.Context, studentID string, from, to time.Time) ([]*types.DailyEngagementMetric, error)
}

type engagementService struct {
	db         *gorm.DB
	log        *logger.Logger
	eventRepo  repos.ActivityEventRepo
	metricRepo repos.DailyMetricRepo
	scoreRepo  repos.EngagementScoreRepo
}

func NewEngagementService(db *gorm.DB, log *logger.Logger, eventRepo repos.ActivityEventRepo, metricRepo repos.DailyMetricRepo, scoreRepo repos.EngagementScoreRepo) EngagementService {
	serviceLog := log.With("service", "EngagementService")
	return &engagementService{
		db:         db,
		log:        serviceLog,
		eventRepo:  eventRepo,
		metricRepo: metricRepo,
		scoreRepo:  scoreRepo,
	}
}

// IngestEvents validates and stores a batch of activity events. The whole
// batch is rejected on the first invalid event so the sender can fix and
// resubmit without partial-write ambiguity.
func (s *engagementService) IngestEvents(ctx context.Context, inputs []EventInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]*types.StudentActivityEvent, 0, len(inputs))
	for i, in := range inputs {
		if in.StudentID == "" {
			return 0, fmt.Errorf("event %d: missing student_id", i)
		}
		if _, ok := types.ValidEventTypes[in.EventType]; !ok {
			return 0, fmt.Errorf("event %d: unknown event_type %q", i, in.EventType)
		}
		if in.EventTimestamp.IsZero() || in.EventTimestamp.After(now.Add(5*time.Minute)) {
			return 0, fmt.Errorf("event %d: invalid event_timestamp", i)
		}
		var payload datatypes.JSON
		if in.EventData != nil {
			data, err := json.Marshal(in.EventData)
			if err != nil {
				return 0, fmt.Errorf("event %d: encoding event_data: %w", i, err)
			}
			payload = datatypes.JSON(data)
		}
		rows = append(rows, &types.StudentActivityEvent{
			EventID:        uuid.New(),
			StudentID:      in.StudentID,
			EventType:      in.EventType,
			EventTimestamp: in.EventTimestamp.UTC(),
			SessionID:      in.SessionID,
			EventData:      payload,
			SourceService:  in.SourceService,
			CreatedAt:      now,
		})
	}
	if _, err := s.eventRepo.Create(ctx, nil, rows); err != nil {
		return 0, fmt.Errorf("storing activity events: %w", err)
	}
	s.log.Debug("Ingested activity events", "count", len(rows))
	return len(rows), nil
}

func (s *engagementService) GetLatestScore(ctx context.Context, studentID string) (*types.EngagementScore, error) {
	score, err := s.scoreRepo.LatestByStudent(ctx, nil, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no engagement scores for student %s", ErrNotFound, studentID)
		}
		return nil, err
	}
	return score, nil
}

func (s *engagementService) GetScoreByDate(ctx context.Context, studentID string, date time.Time) (*types.EngagementScore, error) {
	score, err := s.scoreRepo.GetByStudentAndDate(ctx, nil, studentID, date.Truncate(24*time.Hour))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no engagement score for student %s on %s",
				ErrNotFound, studentID, date.Format("2006-01-02"))
		}
		return nil, err
	}
	return score, nil
}

func (s *engagementService) GetScoreHistory(ctx context.Context, studentID string, limit int) ([]*types.EngagementScore, error) {
	if limit <= 0 || limit > 365 {
		limit = 90
	}
	return s.scoreRepo.ListByStudent(ctx, nil, studentID, limit)
}

// GetSummary aggregates the most recent scores, newest first in storage,
// so the latest row is the first one returned.
func (s *engagementService) GetSummary(ctx context.Context, studentID string, days int) (*EngagementSummary, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	scores, err := s.scoreRepo.ListByStudent(ctx, nil, studentID, days)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no engagement scores for student %s", ErrNotFound, studentID)
	}

	latest := scores[0]
	summary := &EngagementSummary{
		StudentID:   studentID,
		Days:        days,
		MinScore:    latest.EngagementScore,
		MaxScore:    latest.EngagementScore,
		LatestScore: latest.EngagementScore,
		LatestLevel: latest.EngagementLevel,
	}
	if latest.EngagementTrend != nil {
		summary.Trend = *latest.EngagementTrend
	}
	total := 0.0
	for _, score := range scores {
		total += score.EngagementScore
		if score.EngagementScore < summary.MinScore {
			summary.MinScore = score.EngagementScore
		}
		if score.EngagementScore > summary.MaxScore {
			summary.MaxScore = score.EngagementScore
		}
	}
	summary.AverageScore = total / float64(len(scores))
	return summary, nil
}

func (s *engagementService) GetDailyMetrics(ctx context.Context, studentID string, from, to time.Time) ([]*types.DailyEngagementMetric, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, fmt.Errorf("invalid range: from %s after to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return s.metricRepo.ListByStudentRange(ctx, nil, studentID, from, to)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/cache"
	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/risk"
	"github.com/edumind/engagement-tracker/internal/types"
)

// RiskStatistics is the cohort-level summary for dashboards.
type RiskStatistics struct {
	TotalStudents int            `json:"total_students"`
	AtRiskCount   int            `json:"at_risk_count"`
	AtRiskRate    float64        `json:"at_risk_rate"`
	ByLevel       map[string]int `json:"by_level"`
	ModelVersion  string         `json:"model_version,omitempty"`
	LastCycleAt   *time.Time     `json:"last_cycle_at,omitempty"`
}

// TrajectoryPoint is one prediction in a student's risk timeline.
type TrajectoryPoint struct {
	Date        time.Time `json:"date"`
	Probability float64   `json:"probability"`
	RiskLevel   string    `json:"risk_level"`
}

// Trajectory is a student's risk movement over a window. Direction
// compares the first and last probabilities; moves under the noise band
// count as stable.
type Trajectory struct {
	StudentID string            `json:"student_id"`
	Points    []TrajectoryPoint `json:"points"`
	Direction string            `json:"direction"`
}

const trajectoryNoiseBand = 0.05

type PredictionService interface {
	GetLatest(ctx context.Context, studentID string) (*types.DisengagementPrediction, error)
	GetHistory(ctx context.Context, studentID string, limit int) ([]*types.DisengagementPrediction, error)
	ListAtRisk(ctx context.Context, days int, riskLevel string) ([]*types.DisengagementPrediction, error)
	GetStatistics(ctx context.Context, days int) (*RiskStatistics, error)
	GetTrajectory(ctx context.Context, studentID string, days int) (*Trajectory, error)
	// InvalidateCache drops cached predictions after a training cycle
	// replaced the table.
	InvalidateCache(ctx context.Context) error
}

type predictionService struct {
	db       *gorm.DB
	log      *logger.Logger
	predRepo repos.PredictionRepo
	cache    cache.PredictionCache
}

func NewPredictionService(db *gorm.DB, log *logger.Logger, predRepo repos.PredictionRepo, predCache cache.PredictionCache) PredictionService {
	serviceLog := log.With("service", "PredictionService")
	return &predictionService{
		db:       db,
		log:      serviceLog,
		predRepo: predRepo,
		cache:    predCache,
	}
}

func (s *predictionService) GetLatest(ctx context.Context, studentID string) (*types.DisengagementPrediction, error) {
	if pred, ok := s.cache.GetLatest(ctx, studentID); ok {
		return pred, nil
	}
	pred, err := s.predRepo.LatestByStudent(ctx, nil, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no prediction for student %s", ErrNotFound, studentID)
		}
		return nil, err
	}
	s.cache.SetLatest(ctx, pred)
	return pred, nil
}

func (s *predictionService) GetHistory(ctx context.Context, studentID string, limit int) ([]*types.DisengagementPrediction, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	return s.predRepo.HistoryByStudent(ctx, nil, studentID, limit)
}

func (s *predictionService) ListAtRisk(ctx context.Context, days int, riskLevel string) ([]*types.DisengagementPrediction, error) {
	if days <= 0 {
		days = 7
	}
	if riskLevel != "" {
		switch riskLevel {
		case risk.LevelLow, risk.LevelMedium, risk.LevelHigh:
		default:
			return nil, fmt.Errorf("unknown risk level %q", riskLevel)
		}
	}
	if preds, ok := s.cache.GetAtRisk(ctx, days, riskLevel); ok {
		return preds, nil
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	preds, err := s.predRepo.ListAtRiskSince(ctx, nil, since, riskLevel)
	if err != nil {
		return nil, err
	}
	// The table holds one row per (student, date); the advisor list wants
	// each student once, at their newest state.
	preds = latestPerStudent(preds)
	s.cache.SetAtRisk(ctx, days, riskLevel, preds)
	return preds, nil
}

// latestPerStudent collapses a per-(student, date) slice down to each
// student's newest row, preserving first-seen order.
func latestPerStudent(preds []*types.DisengagementPrediction) []*types.DisengagementPrediction {
	newest := make(map[string]*types.DisengagementPrediction, len(preds))
	order := make([]string, 0, len(preds))
	for _, pred := range preds {
		prev, ok := newest[pred.StudentID]
		if !ok {
			order = append(order, pred.StudentID)
			newest[pred.StudentID] = pred
			continue
		}
		if pred.PredictionDate.After(prev.PredictionDate) {
			newest[pred.StudentID] = pred
		}
	}
	out := make([]*types.DisengagementPrediction, 0, len(order))
	for _, id := range order {
		out = append(out, newest[id])
	}
	return out
}

// GetStatistics aggregates the current prediction cycle. The independent
// queries fan out concurrently.
func (s *predictionService) GetStatistics(ctx context.Context, days int) (*RiskStatistics, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var (
		recent []*types.DisengagementPrediction
		latest *types.DisengagementPrediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = s.predRepo.ListSince(gctx, nil, since)
		return err
	})
	g.Go(func() error {
		var err error
		latest, err = s.predRepo.LatestCreated(gctx, nil)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			latest = nil
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregating predictions: %w", err)
	}

	// Count each student once, at their newest prediction in the window.
	current := latestPerStudent(recent)
	stats := &RiskStatistics{ByLevel: map[string]int{}}
	stats.TotalStudents = len(current)
	for _, pred := range current {
		stats.ByLevel[pred.RiskLevel]++
		if pred.AtRisk {
			stats.AtRiskCount++
		}
	}
	if stats.TotalStudents > 0 {
		stats.AtRiskRate = float64(stats.AtRiskCount) / float64(stats.TotalStudents)
	}
	if latest != nil {
		stats.ModelVersion = latest.ModelVersion
		createdAt := latest.CreatedAt
		stats.LastCycleAt = &createdAt
	}
	return stats, nil
}

func (s *predictionService) GetTrajectory(ctx context.Context, studentID string, days int) (*Trajectory, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	preds, err := s.predRepo.ListByStudentSince(ctx, nil, studentID, since)
	if err != nil {
		return nil, err
	}
	traj := &Trajectory{StudentID: studentID, Direction: "stable"}
	for _, pred := range preds {
		traj.Points = append(traj.Points, TrajectoryPoint{
			Date:        pred.PredictionDate,
			Probability: pred.RiskProbability,
			RiskLevel:   pred.RiskLevel,
		})
	}
	if len(traj.Points) >= 2 {
		delta := traj.Points[len(traj.Points)-1].Probability - traj.Points[0].Probability
		switch {
		case delta > trajectoryNoiseBand:
			traj.Direction = "rising"
		case delta < -trajectoryNoiseBand:
			traj.Direction = "falling"
		}
	}
	return traj, nil
}

func (s *predictionService) InvalidateCache(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/repos"
	"github.com/edumind/engagement-tracker/internal/types"
)

// InterventionInput is a manually recorded intervention, as opposed to the
// advisor-outreach rows the training cycle opens on its own.
type InterventionInput struct {
	StudentID           string `json:"student_id"`
	InterventionType    string `json:"intervention_type" binding:"required"`
	InterventionTitle   string `json:"intervention_title,omitempty"`
	InterventionContent string `json:"intervention_content,omitempty"`
	TriggeredBy         string `json:"triggered_by,omitempty"`
}

type InterventionService interface {
	Record(ctx context.Context, input InterventionInput) (*types.InterventionLog, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]*types.InterventionLog, error)
	// MarkDelivered transitions a pending intervention to delivered.
	// Already-delivered rows return ErrNotFound rather than flipping
	// their timestamp.
	MarkDelivered(ctx context.Context, id uuid.UUID) (*types.InterventionLog, error)
}

type interventionService struct {
	db               *gorm.DB
	log              *logger.Logger
	interventionRepo repos.InterventionLogRepo
}

func NewInterventionService(db *gorm.DB, log *logger.Logger, interventionRepo repos.InterventionLogRepo) InterventionService {
	serviceLog := log.With("service", "InterventionService")
	return &interventionService{
		db:               db,
		log:              serviceLog,
		interventionRepo: interventionRepo,
	}
}

func (s *interventionService) Record(ctx context.Context, input InterventionInput) (*types.InterventionLog, error) {
	if input.StudentID == "" {
		return nil, fmt.Errorf("missing student_id")
	}
	if _, ok := types.ValidInterventionTypes[input.InterventionType]; !ok {
		return nil, fmt.Errorf("unknown intervention_type %q", input.InterventionType)
	}
	triggeredBy := input.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "staff"
	}
	row := &types.InterventionLog{
		ID:                  uuid.New(),
		StudentID:           input.StudentID,
		InterventionType:    input.InterventionType,
		InterventionTitle:   input.InterventionTitle,
		InterventionContent: input.InterventionContent,
		Status:              types.InterventionStatusPending,
		TriggeredBy:         triggeredBy,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.interventionRepo.Create(ctx, nil, row); err != nil {
		return nil, fmt.Errorf("storing intervention: %w", err)
	}
	s.log.Info("Recorded intervention",
		"student_id", row.StudentID,
		"intervention_type", row.InterventionType,
		"triggered_by", row.TriggeredBy)
	return row, nil
}

func (s *interventionService) ListByStudent(ctx context.Context, studentID string, limit int) ([]*types.InterventionLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.interventionRepo.ListByStudent(ctx, nil, studentID, limit)
}

func (s *interventionService) MarkDelivered(ctx context.Context, id uuid.UUID) (*types.InterventionLog, error) {
	deliveredAt := time.Now().UTC()
	var updated *types.InterventionLog
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.interventionRepo.MarkDelivered(ctx, tx, id, deliveredAt); err != nil {
			return err
		}
		var err error
		updated, err = s.interventionRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no pending intervention %s", ErrNotFound, id)
		}
		return nil, err
	}
	return updated, nil
}

package service

import (
	"context"
	"math"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// Budget threshold levels.
const (
	ThresholdOK       = "ok"
	ThresholdWarning  = "warning"
	ThresholdCritical = "critical"
)

// BudgetThreshold classifies a project's budget consumption.
type BudgetThreshold struct {
	Level   string `json:"level"`
	Percent int    `json:"percent"`
}

// BudgetService handles the append-only spend ledger and the derived spent
// amount.
type BudgetService struct {
	projects ProjectStore
	events   BudgetEventStore
	log      *logger.Logger
}

// NewBudgetService creates a new budget service.
func NewBudgetService(projects ProjectStore, events BudgetEventStore, log *logger.Logger) *BudgetService {
	return &BudgetService{
		projects: projects,
		events:   events,
		log:      log,
	}
}

// CreateBudgetEventRequest represents a new ledger entry.
type CreateBudgetEventRequest struct {
	ProjectID   string  `json:"project_id"`
	MediaPlanID *string `json:"media_plan_id"`
	Stage       string  `json:"stage"`
	Amount      int64   `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Status      string  `json:"status"`
	CreatedBy   string  `json:"created_by"`
}

var validEventTypes = map[string]bool{
	repository.EventTypeAlloc:  true,
	repository.EventTypeSpend:  true,
	repository.EventTypeAdjust: true,
}

var validEventStatuses = map[string]bool{
	repository.EventStatusPending:  true,
	repository.EventStatusApproved: true,
	repository.EventStatusRejected: true,
	repository.EventStatusPaid:     true,
}

// CreateEvent appends one ledger row. A SPEND entry triggers a full
// recompute of the project's spent amount.
func (s *BudgetService) CreateEvent(ctx context.Context, req *CreateBudgetEventRequest) (*repository.BudgetEvent, error) {
	if !validEventTypes[req.Type] {
		return nil, errors.InvalidInput("type", "invalid budget event type")
	}
	if req.Status == "" {
		req.Status = repository.EventStatusPending
	}
	if !validEventStatuses[req.Status] {
		return nil, errors.InvalidInput("status", "invalid budget event status")
	}
	if req.Amount == 0 {
		return nil, errors.InvalidInput("amount", "amount cannot be zero")
	}

	exists, err := s.projects.Exists(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("project", req.ProjectID)
	}

	if req.MediaPlanID != nil {
		belongs, err := s.events.MediaPlanBelongs(ctx, *req.MediaPlanID, req.ProjectID)
		if err != nil {
			return nil, err
		}
		if !belongs {
			return nil, errors.NotFound("media_plan", *req.MediaPlanID)
		}
	}

	event := &repository.BudgetEvent{
		ProjectID:   req.ProjectID,
		MediaPlanID: req.MediaPlanID,
		Stage:       req.Stage,
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Status:      req.Status,
		CreatedBy:   req.CreatedBy,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	if event.Type == repository.EventTypeSpend {
		if _, err := s.RecalcSpent(ctx, req.ProjectID); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("project_id", req.ProjectID).
		Str("event_id", event.ID).
		Str("type", event.Type).
		Int64("amount", event.Amount).
		Msg("Budget event created")

	return event, nil
}

// UpdateEventStatus changes an event's status. Status is the only mutable
// field; a SPEND event triggers a spent-amount recompute.
func (s *BudgetService) UpdateEventStatus(ctx context.Context, eventID, projectID, status string) (*repository.BudgetEvent, error) {
	if !validEventStatuses[status] {
		return nil, errors.InvalidInput("status", "invalid budget event status")
	}

	event, err := s.events.GetByID(ctx, eventID, projectID)
	if err != nil {
		return nil, err
	}

	if err := s.events.UpdateStatus(ctx, eventID, status); err != nil {
		return nil, err
	}
	event.Status = status

	if event.Type == repository.EventTypeSpend {
		if _, err := s.RecalcSpent(ctx, projectID); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("project_id", projectID).
		Str("event_id", eventID).
		Str("status", status).
		Msg("Budget event status updated")

	return event, nil
}

// RecalcSpent recomputes the project's spent amount as the full-ledger sum
// of approved SPEND events. Always a full recompute, never an incremental
// delta, so concurrent or duplicate calls converge.
func (s *BudgetService) RecalcSpent(ctx context.Context, projectID string) (int64, error) {
	total, err := s.events.SumApprovedSpend(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if err := s.projects.UpdateSpentAmount(ctx, projectID, total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetThreshold classifies a project's budget consumption. A missing project
// or a zero total budget yields {ok, 0}.
func (s *BudgetService) GetThreshold(ctx context.Context, projectID string) (*BudgetThreshold, error) {
	budget, err := s.projects.GetBudget(ctx, projectID)
	if err != nil {
		if errors.IsNotFound(err) {
			return &BudgetThreshold{Level: ThresholdOK, Percent: 0}, nil
		}
		return nil, err
	}
	if budget.TotalBudget == 0 {
		return &BudgetThreshold{Level: ThresholdOK, Percent: 0}, nil
	}

	percent := int(math.Round(float64(budget.SpentAmount) / float64(budget.TotalBudget) * 100))

	level := ThresholdOK
	switch {
	case percent >= 100:
		level = ThresholdCritical
	case percent >= 80:
		level = ThresholdWarning
	}

	return &BudgetThreshold{Level: level, Percent: percent}, nil
}

// ListEvents returns the ledger rows of a project.
func (s *BudgetService) ListEvents(ctx context.Context, projectID string) ([]*repository.BudgetEvent, error) {
	exists, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("project", projectID)
	}
	return s.events.ListByProject(ctx, projectID)
}

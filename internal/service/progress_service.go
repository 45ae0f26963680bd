package service

import (
	"context"
	"math"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// ProgressService maintains the derived progress fields of the phase
// hierarchy. Phase and project progress are written from no other path.
type ProgressService struct {
	phases   PhaseStore
	projects ProjectStore
	log      *logger.Logger
}

// NewProgressService creates a new progress service.
func NewProgressService(phases PhaseStore, projects ProjectStore, log *logger.Logger) *ProgressService {
	return &ProgressService{
		phases:   phases,
		projects: projects,
		log:      log,
	}
}

// RecalculatePhaseProgress recomputes a phase's progress from its items and
// cascades into the project-level roll-up. When the items carry no weight
// the result is 0 and nothing is persisted.
func (s *ProgressService) RecalculatePhaseProgress(ctx context.Context, phaseID string) (int, error) {
	phase, err := s.phases.GetPhase(ctx, phaseID)
	if err != nil {
		return 0, err
	}

	items, err := s.phases.ListItems(ctx, phaseID)
	if err != nil {
		return 0, err
	}

	var totalWeight, completedWeight int
	for _, item := range items {
		totalWeight += item.Weight
		if item.IsComplete {
			completedWeight += item.Weight
		}
	}
	if totalWeight == 0 {
		return 0, nil
	}

	progress := int(math.Round(float64(completedWeight) * 100 / float64(totalWeight)))
	if err := s.phases.UpdatePhaseProgress(ctx, phaseID, progress); err != nil {
		return 0, err
	}

	if _, err := s.RecalculateProjectProgress(ctx, phase.ProjectID); err != nil {
		return 0, err
	}

	return progress, nil
}

// RecalculateProjectProgress recomputes the project's stage progress as the
// weighted average of its phases.
func (s *ProgressService) RecalculateProjectProgress(ctx context.Context, projectID string) (int, error) {
	phases, err := s.phases.ListPhases(ctx, projectID)
	if err != nil {
		return 0, err
	}

	var totalWeight, weighted int
	for _, phase := range phases {
		totalWeight += phase.Weight
		weighted += phase.Weight * phase.Progress
	}
	if totalWeight == 0 {
		return 0, nil
	}

	progress := int(math.Round(float64(weighted) / float64(totalWeight)))
	if err := s.projects.UpdateStageProgress(ctx, projectID, progress); err != nil {
		return 0, err
	}

	return progress, nil
}

// CreatePhaseItemRequest represents a new checklist item.
type CreatePhaseItemRequest struct {
	PhaseID    string `json:"phase_id"`
	Name       string `json:"name"`
	Weight     int    `json:"weight"`
	IsComplete bool   `json:"is_complete"`
	OrderIndex int    `json:"order_index"`
}

// CreateItem adds a checklist item and re-rolls the phase progress.
func (s *ProgressService) CreateItem(ctx context.Context, req *CreatePhaseItemRequest) (*repository.ProjectPhaseItem, error) {
	if req.Name == "" {
		return nil, errors.InvalidInput("name", "item name is required")
	}
	if req.Weight < 0 {
		return nil, errors.InvalidInput("weight", "weight cannot be negative")
	}
	if _, err := s.phases.GetPhase(ctx, req.PhaseID); err != nil {
		return nil, err
	}

	item := &repository.ProjectPhaseItem{
		PhaseID:    req.PhaseID,
		Name:       req.Name,
		Weight:     req.Weight,
		IsComplete: req.IsComplete,
		OrderIndex: req.OrderIndex,
	}
	if err := s.phases.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	if _, err := s.RecalculatePhaseProgress(ctx, req.PhaseID); err != nil {
		return nil, err
	}
	return item, nil
}

// PhaseItemPatch is a partial update to a checklist item.
type PhaseItemPatch struct {
	Name       *string `json:"name"`
	Weight     *int    `json:"weight"`
	IsComplete *bool   `json:"is_complete"`
	OrderIndex *int    `json:"order_index"`
}

// UpdateItem applies a patch to a checklist item and re-rolls the phase
// progress.
func (s *ProgressService) UpdateItem(ctx context.Context, phaseID, itemID string, patch *PhaseItemPatch) (*repository.ProjectPhaseItem, error) {
	item, err := s.phases.GetItem(ctx, itemID, phaseID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, errors.InvalidInput("name", "item name cannot be empty")
		}
		item.Name = *patch.Name
	}
	if patch.Weight != nil {
		if *patch.Weight < 0 {
			return nil, errors.InvalidInput("weight", "weight cannot be negative")
		}
		item.Weight = *patch.Weight
	}
	if patch.IsComplete != nil {
		item.IsComplete = *patch.IsComplete
	}
	if patch.OrderIndex != nil {
		item.OrderIndex = *patch.OrderIndex
	}

	if err := s.phases.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	if _, err := s.RecalculatePhaseProgress(ctx, phaseID); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a checklist item and re-rolls the phase progress.
func (s *ProgressService) DeleteItem(ctx context.Context, phaseID, itemID string) error {
	if err := s.phases.DeleteItem(ctx, itemID, phaseID); err != nil {
		return err
	}

	_, err := s.RecalculatePhaseProgress(ctx, phaseID)
	return err
}

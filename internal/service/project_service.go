package service

import (
	"context"

	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// ProjectDetail is the read model for a provisioned project.
type ProjectDetail struct {
	Project *repository.Project             `json:"project"`
	Budget  *repository.ProjectBudget       `json:"budget"`
	Team    []*repository.ProjectTeamMember `json:"team"`
	Phases  []*PhaseDetail                  `json:"phases"`
}

// PhaseDetail pairs a phase with its checklist items.
type PhaseDetail struct {
	Phase *repository.ProjectPhase       `json:"phase"`
	Items []*repository.ProjectPhaseItem `json:"items"`
}

// ProjectService serves project reads.
type ProjectService struct {
	projects ProjectStore
	phases   PhaseStore
	log      *logger.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(projects ProjectStore, phases PhaseStore, log *logger.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		phases:   phases,
		log:      log,
	}
}

// GetProject returns a project with its budget, team and phase hierarchy.
func (s *ProjectService) GetProject(ctx context.Context, id string) (*ProjectDetail, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	budget, err := s.projects.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}

	team, err := s.projects.ListTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	phases, err := s.phases.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}

	details := make([]*PhaseDetail, 0, len(phases))
	for _, phase := range phases {
		items, err := s.phases.ListItems(ctx, phase.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, &PhaseDetail{Phase: phase, Items: items})
	}

	return &ProjectDetail{
		Project: project,
		Budget:  budget,
		Team:    team,
		Phases:  details,
	}, nil
}

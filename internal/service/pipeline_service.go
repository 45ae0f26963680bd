package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// stageTransitions is the fixed pipeline stage adjacency table. WON and LOST
// are terminal.
var stageTransitions = map[string]map[string]bool{
	repository.StageLead:        {repository.StageQualified: true, repository.StageLost: true},
	repository.StageQualified:   {repository.StageEvaluation: true, repository.StageLost: true},
	repository.StageEvaluation:  {repository.StageNegotiation: true, repository.StageLost: true},
	repository.StageNegotiation: {repository.StageWon: true, repository.StageLost: true},
	repository.StageWon:         {},
	repository.StageLost:        {},
}

// CanTransition reports whether a stage change is permitted by the
// adjacency table.
func CanTransition(from, to string) bool {
	next, ok := stageTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// PipelineService handles pipeline business logic up to the decision point.
type PipelineService struct {
	pipelines PipelineStore
	log       *logger.Logger
	clock     Clock
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(pipelines PipelineStore, log *logger.Logger) *PipelineService {
	return &PipelineService{
		pipelines: pipelines,
		log:       log,
		clock:     time.Now,
	}
}

// CreatePipelineRequest represents a create pipeline request.
type CreatePipelineRequest struct {
	ProjectName string  `json:"project_name"`
	ProductType *string `json:"product_type"`
	NVKDID      string  `json:"nvkd_id"`
	PMID        *string `json:"pm_id"`
	PlannerID   *string `json:"planner_id"`
	TotalBudget int64   `json:"total_budget"`
	CreatedBy   string  `json:"created_by"`
}

// CreatePipeline creates a new pipeline in LEAD stage with a PENDING
// decision.
func (s *PipelineService) CreatePipeline(ctx context.Context, req *CreatePipelineRequest) (*repository.Pipeline, error) {
	if req.ProjectName == "" {
		return nil, errors.InvalidInput("project_name", "project name is required")
	}
	if req.NVKDID == "" {
		return nil, errors.InvalidInput("nvkd_id", "a sales owner is required")
	}
	if req.TotalBudget < 0 {
		return nil, errors.InvalidInput("total_budget", "total budget cannot be negative")
	}

	fin := ComputeFinancials(CostInputs{TotalBudget: req.TotalBudget})

	p := &repository.Pipeline{
		ProjectName:  req.ProjectName,
		ProductType:  req.ProductType,
		Stage:        repository.StageLead,
		Decision:     repository.DecisionPending,
		TotalBudget:  req.TotalBudget,
		COGS:         fin.COGS,
		GrossProfit:  fin.GrossProfit,
		ProfitMargin: fin.ProfitMargin,
		NVKDID:       req.NVKDID,
		PMID:         req.PMID,
		PlannerID:    req.PlannerID,
		CreatedBy:    &req.CreatedBy,
	}

	if err := s.pipelines.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pipeline_id", p.ID).
		Str("project_name", p.ProjectName).
		Str("nvkd_id", p.NVKDID).
		Msg("Pipeline created")

	return p, nil
}

// GetPipeline retrieves a pipeline by ID.
func (s *PipelineService) GetPipeline(ctx context.Context, id string) (*repository.Pipeline, error) {
	return s.pipelines.GetByID(ctx, id)
}

// UpdateStage moves a pipeline to a new stage. Rejected when the transition
// is not in the adjacency table or the pipeline is already decided.
func (s *PipelineService) UpdateStage(ctx context.Context, id, newStage, actorID string) (*repository.Pipeline, error) {
	p, err := s.pipelines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requirePending(p); err != nil {
		return nil, err
	}
	if !CanTransition(p.Stage, newStage) {
		return nil, errors.InvalidTransition("pipeline", p.Stage, newStage)
	}

	if err := s.pipelines.UpdateStage(ctx, id, newStage); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pipeline_id", id).
		Str("from_stage", p.Stage).
		Str("to_stage", newStage).
		Str("actor_id", actorID).
		Msg("Pipeline stage updated")

	p.Stage = newStage
	return p, nil
}

// UpdateEvaluation applies a partial cost update and recomputes the derived
// financial fields against the merged record.
func (s *PipelineService) UpdateEvaluation(ctx context.Context, id string, patch *EvaluationPatch, actorID string) (*repository.Pipeline, error) {
	p, err := s.pipelines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requirePending(p); err != nil {
		return nil, err
	}

	in := mergeCosts(p, patch)
	if in.NSQC < 0 || in.Design < 0 || in.Media < 0 || in.KOL < 0 || in.Other < 0 {
		return nil, errors.InvalidInput("costs", "cost amounts cannot be negative")
	}
	if in.TotalBudget < 0 {
		return nil, errors.InvalidInput("total_budget", "total budget cannot be negative")
	}

	fin := ComputeFinancials(in)

	p.CostNSQC = in.NSQC
	p.CostDesign = in.Design
	p.CostMedia = in.Media
	p.CostKOL = in.KOL
	p.CostOther = in.Other
	p.TotalBudget = in.TotalBudget
	p.COGS = fin.COGS
	p.GrossProfit = fin.GrossProfit
	p.ProfitMargin = fin.ProfitMargin

	if err := s.pipelines.UpdateEvaluation(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pipeline_id", id).
		Int64("cogs", p.COGS).
		Int64("gross_profit", p.GrossProfit).
		Float64("profit_margin", p.ProfitMargin).
		Str("actor_id", actorID).
		Msg("Pipeline evaluation updated")

	return p, nil
}

// AddWeeklyNoteRequest represents a weekly note append.
type AddWeeklyNoteRequest struct {
	PipelineID string `json:"pipeline_id"`
	Week       int    `json:"week"`
	NoteDate   string `json:"note_date"`
	Note       string `json:"note"`
	AuthorID   string `json:"author_id"`
}

// AddWeeklyNote appends a weekly tracking note to a pending pipeline.
func (s *PipelineService) AddWeeklyNote(ctx context.Context, req *AddWeeklyNoteRequest) (*repository.PipelineNote, error) {
	if req.Note == "" {
		return nil, errors.InvalidInput("note", "note text is required")
	}
	if req.Week < 1 {
		return nil, errors.InvalidInput("week", "week must be positive")
	}
	if _, err := time.Parse("2006-01-02", req.NoteDate); err != nil {
		return nil, errors.InvalidInput("note_date", "invalid date format, expected YYYY-MM-DD")
	}

	p, err := s.pipelines.GetByID(ctx, req.PipelineID)
	if err != nil {
		return nil, err
	}
	if err := requirePending(p); err != nil {
		return nil, err
	}

	n := &repository.PipelineNote{
		PipelineID: req.PipelineID,
		Week:       req.Week,
		NoteDate:   req.NoteDate,
		Note:       req.Note,
		AuthorID:   req.AuthorID,
	}
	if err := s.pipelines.AppendNote(ctx, n); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pipeline_id", req.PipelineID).
		Int("week", req.Week).
		Str("author_id", req.AuthorID).
		Msg("Weekly note added")

	return n, nil
}

// ListWeeklyNotes returns the ordered weekly notes of a pipeline.
func (s *PipelineService) ListWeeklyNotes(ctx context.Context, pipelineID string) ([]*repository.PipelineNote, error) {
	if _, err := s.pipelines.GetByID(ctx, pipelineID); err != nil {
		return nil, err
	}
	return s.pipelines.ListNotes(ctx, pipelineID)
}

// requirePending rejects mutation of a decided pipeline.
func requirePending(p *repository.Pipeline) error {
	if p.Decision != repository.DecisionPending {
		return errors.Newf(errors.ErrCodeReadOnly,
			"pipeline is read-only after decision (decision: %s)", p.Decision)
	}
	return nil
}

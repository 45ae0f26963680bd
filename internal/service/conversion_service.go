package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// maxCodeAttempts bounds the retry loop around project-code collisions.
// Every attempt runs a fresh transaction, so no partial state survives a
// collision.
const maxCodeAttempts = 5

// phaseSpec describes one canonical phase with its default items.
type phaseSpec struct {
	phaseType string
	weight    int
	items     []itemSpec
}

type itemSpec struct {
	name   string
	weight int
}

// canonicalPhases are the four delivery phases every project starts with.
// Phase weights sum to 100, and item weights within each phase sum to 100.
var canonicalPhases = []phaseSpec{
	{phaseType: "PLANNING", weight: 20, items: []itemSpec{
		{name: "Kickoff meeting", weight: 20},
		{name: "Strategic brief approved", weight: 40},
		{name: "Timeline confirmed", weight: 40},
	}},
	{phaseType: "CONTENT", weight: 30, items: []itemSpec{
		{name: "Content pillars defined", weight: 25},
		{name: "Content calendar approved", weight: 35},
		{name: "Creative assets produced", weight: 40},
	}},
	{phaseType: "MEDIA", weight: 30, items: []itemSpec{
		{name: "Media plan approved", weight: 30},
		{name: "Campaigns live", weight: 40},
		{name: "Optimization pass", weight: 30},
	}},
	{phaseType: "REPORT", weight: 20, items: []itemSpec{
		{name: "Mid-campaign report", weight: 40},
		{name: "Final report delivered", weight: 60},
	}},
}

// briefSectionTitles is the fixed 16-section strategic brief catalog.
var briefSectionTitles = [repository.BriefSectionCount]string{
	"Project Overview",
	"Business Objectives",
	"Target Audience",
	"Consumer Insight",
	"Competitive Landscape",
	"Brand Positioning",
	"Key Message",
	"Strategic Approach",
	"Content Pillars",
	"Channel Strategy",
	"Media Plan",
	"KOL & Influencer Plan",
	"Budget Allocation",
	"Timeline & Milestones",
	"KPIs & Measurement",
	"Risks & Dependencies",
}

// ConversionService converts a pipeline decision into a provisioned project
// family, or closes it out as lost.
type ConversionService struct {
	pipelines PipelineStore
	projects  ProjectStore
	notifier  Notifier
	log       *logger.Logger
	clock     Clock
	newCode   func() string
}

// NewConversionService creates a new conversion service.
func NewConversionService(pipelines PipelineStore, projects ProjectStore, notifier Notifier, log *logger.Logger) *ConversionService {
	return &ConversionService{
		pipelines: pipelines,
		projects:  projects,
		notifier:  notifier,
		log:       log,
		clock:     time.Now,
		newCode:   GenerateProjectCode,
	}
}

// GenerateProjectCode produces a human-readable project code like
// PRJ-2608-4F21A0.
func GenerateProjectCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("PRJ-%s-%s", time.Now().Format("0601"), suffix)
}

// AcceptPipeline converts a pending pipeline into a live project. All writes
// happen in one transaction; a code collision rolls everything back and is
// retried with a fresh code up to maxCodeAttempts times.
func (s *ConversionService) AcceptPipeline(ctx context.Context, pipelineID, userID string, note *string) (*repository.Project, error) {
	p, err := s.pipelines.GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if p.Decision != repository.DecisionPending {
		return nil, errors.Newf(errors.ErrCodeAlreadyDecided,
			"pipeline has already been decided (decision: %s)", p.Decision)
	}

	now := s.clock()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		prov := s.buildProvision(p, userID, note, now, s.newCode())

		err := s.projects.CreateProvision(ctx, prov)
		if err == nil {
			s.log.Info().
				Str("pipeline_id", pipelineID).
				Str("project_id", prov.Project.ID).
				Str("project_code", prov.Project.Code).
				Int("team_size", len(prov.Team)).
				Str("decided_by", userID).
				Msg("Pipeline accepted, project provisioned")

			s.notify(ctx, "pipeline_accepted", prov.Project.ID, userID, []string{p.NVKDID}, map[string]interface{}{
				"pipeline_id":  pipelineID,
				"project_code": prov.Project.Code,
			})
			return prov.Project, nil
		}
		if !errors.IsConflict(err) {
			return nil, err
		}

		s.log.Warn().
			Str("pipeline_id", pipelineID).
			Str("project_code", prov.Project.Code).
			Int("attempt", attempt).
			Msg("Project code collision, retrying with a fresh code")
	}

	return nil, errors.Newf(errors.ErrCodeInternal,
		"project code generation exhausted after %d attempts", maxCodeAttempts)
}

// DeclinePipeline closes a pending pipeline as lost. No entities are
// created.
func (s *ConversionService) DeclinePipeline(ctx context.Context, pipelineID, userID string, note *string) (*repository.Pipeline, error) {
	p, err := s.pipelines.GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if p.Decision != repository.DecisionPending {
		return nil, errors.Newf(errors.ErrCodeAlreadyDecided,
			"pipeline has already been decided (decision: %s)", p.Decision)
	}

	now := s.clock()
	if err := s.pipelines.MarkDeclined(ctx, pipelineID, userID, note, now); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("pipeline_id", pipelineID).
		Str("decided_by", userID).
		Msg("Pipeline declined")

	s.notify(ctx, "pipeline_declined", pipelineID, userID, []string{p.NVKDID}, nil)

	p.Decision = repository.DecisionDeclined
	p.Stage = repository.StageLost
	p.DecisionDate = &now
	p.DecisionNote = note
	p.DecidedBy = &userID
	return p, nil
}

// buildProvision assembles the full project family from a pipeline.
func (s *ConversionService) buildProvision(p *repository.Pipeline, userID string, note *string, now time.Time, code string) *repository.ProjectProvision {
	project := &repository.Project{
		Code:        code,
		Name:        p.ProjectName,
		ProductType: p.ProductType,
		Stage:       p.Stage,
		Status:      repository.ProjectStatusStable,
	}

	budget := &repository.ProjectBudget{
		TotalBudget: p.TotalBudget,
		FeeNSQC:     p.CostNSQC,
		FeeDesign:   p.CostDesign,
		FeeMedia:    p.CostMedia,
		FeeKOL:      p.CostKOL,
		FeeOther:    p.CostOther,
	}

	phases := make([]*repository.ProvisionPhase, 0, len(canonicalPhases))
	for i, spec := range canonicalPhases {
		pp := &repository.ProvisionPhase{
			Phase: &repository.ProjectPhase{
				PhaseType:  spec.phaseType,
				Weight:     spec.weight,
				OrderIndex: i + 1,
			},
		}
		for j, item := range spec.items {
			pp.Items = append(pp.Items, &repository.ProjectPhaseItem{
				Name:       item.name,
				Weight:     item.weight,
				OrderIndex: j + 1,
			})
		}
		phases = append(phases, pp)
	}

	sections := make([]*repository.BriefSection, 0, repository.BriefSectionCount)
	for i, title := range briefSectionTitles {
		sections = append(sections, &repository.BriefSection{
			SectionNumber: i + 1,
			Title:         title,
		})
	}

	return &repository.ProjectProvision{
		PipelineID:   p.ID,
		Project:      project,
		Budget:       budget,
		Team:         buildTeamAssignments(p),
		Phases:       phases,
		Brief:        &repository.StrategicBrief{Status: repository.BriefDraft},
		Sections:     sections,
		DecidedBy:    userID,
		DecisionNote: note,
		DecisionDate: now,
	}
}

// buildTeamAssignments deduplicates the pipeline's role links into team
// rows. Insertion order is NVKD, then PM, then Planner; the first role
// assigned to a user wins.
func buildTeamAssignments(p *repository.Pipeline) []*repository.ProjectTeamMember {
	type assignment struct {
		role      string
		isPrimary bool
	}

	assigned := make(map[string]assignment)
	var order []string

	add := func(userID, role string, isPrimary bool) {
		if userID == "" {
			return
		}
		if _, ok := assigned[userID]; ok {
			return
		}
		assigned[userID] = assignment{role: role, isPrimary: isPrimary}
		order = append(order, userID)
	}

	add(p.NVKDID, repository.RoleNVKD, false)
	if p.PMID != nil {
		add(*p.PMID, repository.RolePM, true)
	}
	if p.PlannerID != nil {
		add(*p.PlannerID, repository.RolePlanner, false)
	}

	members := make([]*repository.ProjectTeamMember, 0, len(order))
	for _, userID := range order {
		a := assigned[userID]
		members = append(members, &repository.ProjectTeamMember{
			UserID:    userID,
			Role:      a.role,
			IsPrimary: a.isPrimary,
		})
	}
	return members
}

// notify dispatches a fire-and-forget event when a publisher is configured.
func (s *ConversionService) notify(ctx context.Context, eventType, resourceID, actorID string, recipients []string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishProjectEvent(ctx, eventType, resourceID, actorID, recipients, payload)
}

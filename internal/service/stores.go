package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// Clock supplies the current time. Injected so time-driven logic is
// deterministic under test.
type Clock func() time.Time

// PipelineStore is the persistence surface the pipeline and conversion
// services need. Implemented by repository.PipelineRepository.
type PipelineStore interface {
	Create(ctx context.Context, p *repository.Pipeline) error
	GetByID(ctx context.Context, id string) (*repository.Pipeline, error)
	UpdateStage(ctx context.Context, id, stage string) error
	UpdateEvaluation(ctx context.Context, p *repository.Pipeline) error
	AppendNote(ctx context.Context, n *repository.PipelineNote) error
	ListNotes(ctx context.Context, pipelineID string) ([]*repository.PipelineNote, error)
	MarkDeclined(ctx context.Context, id, decidedBy string, note *string, decidedAt time.Time) error
}

// ProjectStore is the project-family persistence surface. Implemented by
// repository.ProjectRepository.
type ProjectStore interface {
	CreateProvision(ctx context.Context, prov *repository.ProjectProvision) error
	GetByID(ctx context.Context, id string) (*repository.Project, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetBudget(ctx context.Context, projectID string) (*repository.ProjectBudget, error)
	UpdateSpentAmount(ctx context.Context, projectID string, amount int64) error
	UpdateStageProgress(ctx context.Context, projectID string, progress int) error
	ListTeam(ctx context.Context, projectID string) ([]*repository.ProjectTeamMember, error)
	ListPMUserIDs(ctx context.Context, projectID string) ([]string, error)
}

// BudgetEventStore is the ledger persistence surface. Implemented by
// repository.BudgetEventRepository.
type BudgetEventStore interface {
	Create(ctx context.Context, e *repository.BudgetEvent) error
	GetByID(ctx context.Context, id, projectID string) (*repository.BudgetEvent, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SumApprovedSpend(ctx context.Context, projectID string) (int64, error)
	ListByProject(ctx context.Context, projectID string) ([]*repository.BudgetEvent, error)
	MediaPlanBelongs(ctx context.Context, mediaPlanID, projectID string) (bool, error)
}

// PhaseStore is the phase/item persistence surface. Implemented by
// repository.PhaseRepository.
type PhaseStore interface {
	GetPhase(ctx context.Context, id string) (*repository.ProjectPhase, error)
	ListPhases(ctx context.Context, projectID string) ([]*repository.ProjectPhase, error)
	UpdatePhaseProgress(ctx context.Context, id string, progress int) error
	ListItems(ctx context.Context, phaseID string) ([]*repository.ProjectPhaseItem, error)
	GetItem(ctx context.Context, id, phaseID string) (*repository.ProjectPhaseItem, error)
	CreateItem(ctx context.Context, item *repository.ProjectPhaseItem) error
	UpdateItem(ctx context.Context, item *repository.ProjectPhaseItem) error
	DeleteItem(ctx context.Context, id, phaseID string) error
}

// BriefStore is the strategic-brief persistence surface. Implemented by
// repository.BriefRepository.
type BriefStore interface {
	GetByID(ctx context.Context, id string) (*repository.StrategicBrief, error)
	ListSections(ctx context.Context, briefID string) ([]*repository.BriefSection, error)
	GetSection(ctx context.Context, briefID string, sectionNumber int) (*repository.BriefSection, error)
	UpdateSection(ctx context.Context, s *repository.BriefSection) error
	UpdateCompletion(ctx context.Context, briefID string, pct int) error
	UpdateStatus(ctx context.Context, briefID, status string, submittedAt, approvedAt *time.Time) error
}

// ApprovalStore is the approval persistence surface. Implemented by
// repository.ApprovalRepository.
type ApprovalStore interface {
	Create(ctx context.Context, a *repository.Approval) error
	GetByID(ctx context.Context, id string) (*repository.Approval, error)
	ListPending(ctx context.Context) ([]*repository.Approval, error)
	CountPending(ctx context.Context) (int, error)
	CountEscalatedSince(ctx context.Context, since time.Time) (int, error)
	UpdateEscalation(ctx context.Context, id string, level int, escalatedAt time.Time) error
	UpdateStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error
	AppendHistory(ctx context.Context, entry *repository.ApprovalHistoryEntry) error
	ListHistory(ctx context.Context, approvalID string) ([]*repository.ApprovalHistoryEntry, error)
}

// Notifier dispatches fire-and-forget notifications. Implementations must
// never return an error to the caller; failures are their own concern.
type Notifier interface {
	PublishProjectEvent(ctx context.Context, eventType, resourceID, actorID string, recipients []string, payload map[string]interface{})
}

// IdentityDirectory resolves user IDs by role for notification targeting.
type IdentityDirectory interface {
	GetUsersWithRole(ctx context.Context, role string) ([]string, error)
}

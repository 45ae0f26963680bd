package repository

import "time"

// ── Pipeline ──────────────────────────────────────────────────────────────────

// Pipeline stages.
const (
	StageLead        = "LEAD"
	StageQualified   = "QUALIFIED"
	StageEvaluation  = "EVALUATION"
	StageNegotiation = "NEGOTIATION"
	StageWon         = "WON"
	StageLost        = "LOST"
)

// Pipeline decisions.
const (
	DecisionPending  = "PENDING"
	DecisionAccepted = "ACCEPTED"
	DecisionDeclined = "DECLINED"
)

// Pipeline is a sales opportunity moving through qualification stages.
// All monetary amounts are in cents.
type Pipeline struct {
	ID           string
	ProjectName  string
	ProductType  *string
	Stage        string
	Decision     string
	CostNSQC     int64
	CostDesign   int64
	CostMedia    int64
	CostKOL      int64
	CostOther    int64
	TotalBudget  int64
	COGS         int64   // derived: sum of costs
	GrossProfit  int64   // derived: total budget minus COGS
	ProfitMargin float64 // derived: gross profit as percent of total budget
	NVKDID       string
	PMID         *string
	PlannerID    *string
	ProjectID    *string
	DecisionDate *time.Time
	DecisionNote *string
	DecidedBy    *string
	CreatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PipelineNote is one append-only weekly tracking note on a pipeline.
type PipelineNote struct {
	ID         string
	PipelineID string
	Week       int
	NoteDate   string
	Note       string
	AuthorID   string
	CreatedAt  time.Time
}

// ── Project family ────────────────────────────────────────────────────────────

// Project statuses.
const (
	ProjectStatusStable = "STABLE"
	ProjectStatusAtRisk = "AT_RISK"
	ProjectStatusOnHold = "ON_HOLD"
	ProjectStatusClosed = "CLOSED"
)

// Team roles, in the order they win assignment during provisioning.
const (
	RoleNVKD    = "NVKD"
	RolePM      = "PM"
	RolePlanner = "PLANNER"
)

// Project is a live delivery project created from an accepted pipeline.
type Project struct {
	ID            string
	Code          string
	Name          string
	ProductType   *string
	Stage         string
	Status        string
	StageProgress int // derived: weighted roll-up of phase progress
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProjectBudget is the 1:1 budget record for a project.
type ProjectBudget struct {
	ID            string
	ProjectID     string
	TotalBudget   int64
	MonthlyBudget int64
	SpentAmount   int64 // derived: sum of approved SPEND events
	FeeNSQC       int64
	FeeDesign     int64
	FeeMedia      int64
	FeeKOL        int64
	FeeOther      int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProjectTeamMember is one user's role on a project.
type ProjectTeamMember struct {
	ID        string
	ProjectID string
	UserID    string
	Role      string
	IsPrimary bool
	CreatedAt time.Time
}

// ProjectPhase is one of the four canonical delivery phases.
type ProjectPhase struct {
	ID         string
	ProjectID  string
	PhaseType  string
	Weight     int
	Progress   int // derived: weighted completion of items
	OrderIndex int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProjectPhaseItem is a weighted checklist entry within a phase.
type ProjectPhaseItem struct {
	ID         string
	PhaseID    string
	Name       string
	Weight     int
	IsComplete bool
	OrderIndex int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ── Budget ledger ─────────────────────────────────────────────────────────────

// Budget event types.
const (
	EventTypeAlloc  = "ALLOC"
	EventTypeSpend  = "SPEND"
	EventTypeAdjust = "ADJUST"
)

// Budget event statuses. Status is the only mutable field post-creation.
const (
	EventStatusPending  = "PENDING"
	EventStatusApproved = "APPROVED"
	EventStatusRejected = "REJECTED"
	EventStatusPaid     = "PAID"
)

// BudgetEvent is one immutable row in a project's budget ledger.
type BudgetEvent struct {
	ID          string
	ProjectID   string
	MediaPlanID *string
	Stage       string
	Amount      int64
	Type        string
	Category    string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
}

// ── Strategic brief ───────────────────────────────────────────────────────────

// Brief statuses.
const (
	BriefDraft             = "DRAFT"
	BriefSubmitted         = "SUBMITTED"
	BriefRevisionRequested = "REVISION_REQUESTED"
	BriefApproved          = "APPROVED"
)

// BriefSectionCount is the fixed number of sections per brief.
const BriefSectionCount = 16

// StrategicBrief is the 16-section planning document gating strategy sign-off.
type StrategicBrief struct {
	ID            string
	ProjectID     string
	PipelineID    string
	Status        string
	CompletionPct int // derived: completed sections / 16
	SubmittedAt   *time.Time
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BriefSection is one numbered section of a strategic brief.
type BriefSection struct {
	ID            string
	BriefID       string
	SectionNumber int
	Title         string
	Content       *string
	IsComplete    bool
	UpdatedBy     *string
	UpdatedAt     time.Time
}

// ── Approvals ─────────────────────────────────────────────────────────────────

// Approval statuses.
const (
	ApprovalPending          = "PENDING"
	ApprovalApproved         = "APPROVED"
	ApprovalRejected         = "REJECTED"
	ApprovalChangesRequested = "CHANGES_REQUESTED"
)

// Approval is a sign-off request that escalates while it stays pending.
type Approval struct {
	ID              string
	ProjectID       string
	Title           string
	Status          string
	EscalationLevel int // 0..3, monotonically non-decreasing while pending
	SubmittedAt     time.Time
	EscalatedAt     *time.Time
	SubmittedByID   string
	DecidedBy       *string
	DecidedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApprovalHistoryEntry is one immutable record in an approval's trail.
type ApprovalHistoryEntry struct {
	ID         string
	ApprovalID string
	ProjectID  string
	FromStatus string
	ToStatus   string
	ActorID    string
	Comment    *string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// ── Provisioning aggregate ────────────────────────────────────────────────────

// ProvisionPhase pairs a phase with its default items for creation.
type ProvisionPhase struct {
	Phase *ProjectPhase
	Items []*ProjectPhaseItem
}

// ProjectProvision is everything created atomically when a pipeline is
// accepted. CreateProvision inserts the whole family and stamps the pipeline
// decision in a single transaction.
type ProjectProvision struct {
	PipelineID   string
	Project      *Project
	Budget       *ProjectBudget
	Team         []*ProjectTeamMember
	Phases       []*ProvisionPhase
	Brief        *StrategicBrief
	Sections     []*BriefSection
	DecidedBy    string
	DecisionNote *string
	DecisionDate time.Time
}

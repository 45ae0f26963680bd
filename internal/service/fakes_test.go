package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// In-memory store fakes. They mirror the repository guard semantics
// (decision guards, monotonic escalation) so services can be tested
// without Postgres.

// ── pipelines ─────────────────────────────────────────────────────────────────

type fakePipelineStore struct {
	pipelines map[string]*repository.Pipeline
	notes     map[string][]*repository.PipelineNote
	seq       int
}

func newFakePipelineStore() *fakePipelineStore {
	return &fakePipelineStore{
		pipelines: make(map[string]*repository.Pipeline),
		notes:     make(map[string][]*repository.PipelineNote),
	}
}

func (f *fakePipelineStore) put(p *repository.Pipeline) *repository.Pipeline {
	if p.ID == "" {
		f.seq++
		p.ID = fmt.Sprintf("pipe-%d", f.seq)
	}
	f.pipelines[p.ID] = p
	return p
}

func (f *fakePipelineStore) Create(ctx context.Context, p *repository.Pipeline) error {
	f.put(p)
	return nil
}

func (f *fakePipelineStore) GetByID(ctx context.Context, id string) (*repository.Pipeline, error) {
	p, ok := f.pipelines[id]
	if !ok {
		return nil, errors.NotFound("pipeline", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePipelineStore) UpdateStage(ctx context.Context, id, stage string) error {
	p, ok := f.pipelines[id]
	if !ok {
		return errors.NotFound("pipeline", id)
	}
	p.Stage = stage
	return nil
}

func (f *fakePipelineStore) UpdateEvaluation(ctx context.Context, p *repository.Pipeline) error {
	stored, ok := f.pipelines[p.ID]
	if !ok {
		return errors.NotFound("pipeline", p.ID)
	}
	*stored = *p
	return nil
}

func (f *fakePipelineStore) AppendNote(ctx context.Context, n *repository.PipelineNote) error {
	f.seq++
	n.ID = fmt.Sprintf("note-%d", f.seq)
	f.notes[n.PipelineID] = append(f.notes[n.PipelineID], n)
	return nil
}

func (f *fakePipelineStore) ListNotes(ctx context.Context, pipelineID string) ([]*repository.PipelineNote, error) {
	return f.notes[pipelineID], nil
}

func (f *fakePipelineStore) MarkDeclined(ctx context.Context, id, decidedBy string, note *string, decidedAt time.Time) error {
	p, ok := f.pipelines[id]
	if !ok {
		return errors.NotFound("pipeline", id)
	}
	if p.Decision != repository.DecisionPending {
		return errors.Newf(errors.ErrCodeAlreadyDecided,
			"pipeline has already been decided (decision: %s)", p.Decision)
	}
	p.Decision = repository.DecisionDeclined
	p.Stage = repository.StageLost
	p.DecidedBy = &decidedBy
	p.DecisionNote = note
	p.DecisionDate = &decidedAt
	return nil
}

// ── projects ──────────────────────────────────────────────────────────────────

type fakeProjectStore struct {
	projects       map[string]*repository.Project
	budgets        map[string]*repository.ProjectBudget
	team           map[string][]*repository.ProjectTeamMember
	pmIDs          map[string][]string
	spentWrites    map[string]int64
	progressWrites map[string]int
	provisions     []*repository.ProjectProvision
	provisionCalls int
	// conflictsLeft makes the first N CreateProvision calls fail with a
	// code-collision conflict.
	conflictsLeft int
	seq           int
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects:       make(map[string]*repository.Project),
		budgets:        make(map[string]*repository.ProjectBudget),
		team:           make(map[string][]*repository.ProjectTeamMember),
		pmIDs:          make(map[string][]string),
		spentWrites:    make(map[string]int64),
		progressWrites: make(map[string]int),
	}
}

func (f *fakeProjectStore) CreateProvision(ctx context.Context, prov *repository.ProjectProvision) error {
	f.provisionCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return errors.New(errors.ErrCodeConflict, "project code already exists")
	}
	f.seq++
	prov.Project.ID = fmt.Sprintf("proj-%d", f.seq)
	f.projects[prov.Project.ID] = prov.Project
	prov.Budget.ProjectID = prov.Project.ID
	f.budgets[prov.Project.ID] = prov.Budget
	f.team[prov.Project.ID] = prov.Team
	f.provisions = append(f.provisions, prov)
	return nil
}

func (f *fakeProjectStore) GetByID(ctx context.Context, id string) (*repository.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, errors.NotFound("project", id)
	}
	return p, nil
}

func (f *fakeProjectStore) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := f.projects[id]
	return ok, nil
}

func (f *fakeProjectStore) GetBudget(ctx context.Context, projectID string) (*repository.ProjectBudget, error) {
	b, ok := f.budgets[projectID]
	if !ok {
		return nil, errors.NotFound("project_budget", projectID)
	}
	return b, nil
}

func (f *fakeProjectStore) UpdateSpentAmount(ctx context.Context, projectID string, amount int64) error {
	f.spentWrites[projectID] = amount
	if b, ok := f.budgets[projectID]; ok {
		b.SpentAmount = amount
	}
	return nil
}

func (f *fakeProjectStore) UpdateStageProgress(ctx context.Context, projectID string, progress int) error {
	f.progressWrites[projectID] = progress
	if p, ok := f.projects[projectID]; ok {
		p.StageProgress = progress
	}
	return nil
}

func (f *fakeProjectStore) ListTeam(ctx context.Context, projectID string) ([]*repository.ProjectTeamMember, error) {
	return f.team[projectID], nil
}

func (f *fakeProjectStore) ListPMUserIDs(ctx context.Context, projectID string) ([]string, error) {
	return f.pmIDs[projectID], nil
}

// ── budget events ─────────────────────────────────────────────────────────────

type fakeBudgetEventStore struct {
	events     []*repository.BudgetEvent
	mediaPlans map[string]string // media plan ID -> owning project
	seq        int
}

func newFakeBudgetEventStore() *fakeBudgetEventStore {
	return &fakeBudgetEventStore{mediaPlans: make(map[string]string)}
}

func (f *fakeBudgetEventStore) Create(ctx context.Context, e *repository.BudgetEvent) error {
	f.seq++
	e.ID = fmt.Sprintf("ev-%d", f.seq)
	f.events = append(f.events, e)
	return nil
}

func (f *fakeBudgetEventStore) GetByID(ctx context.Context, id, projectID string) (*repository.BudgetEvent, error) {
	for _, e := range f.events {
		if e.ID == id && e.ProjectID == projectID {
			return e, nil
		}
	}
	return nil, errors.NotFound("budget_event", id)
}

func (f *fakeBudgetEventStore) UpdateStatus(ctx context.Context, id, status string) error {
	for _, e := range f.events {
		if e.ID == id {
			e.Status = status
			return nil
		}
	}
	return errors.NotFound("budget_event", id)
}

func (f *fakeBudgetEventStore) SumApprovedSpend(ctx context.Context, projectID string) (int64, error) {
	var total int64
	for _, e := range f.events {
		if e.ProjectID == projectID && e.Type == repository.EventTypeSpend && e.Status == repository.EventStatusApproved {
			total += e.Amount
		}
	}
	return total, nil
}

func (f *fakeBudgetEventStore) ListByProject(ctx context.Context, projectID string) ([]*repository.BudgetEvent, error) {
	var out []*repository.BudgetEvent
	for _, e := range f.events {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBudgetEventStore) MediaPlanBelongs(ctx context.Context, mediaPlanID, projectID string) (bool, error) {
	return f.mediaPlans[mediaPlanID] == projectID, nil
}

// ── phases ────────────────────────────────────────────────────────────────────

type fakePhaseStore struct {
	phases map[string]*repository.ProjectPhase
	items  map[string][]*repository.ProjectPhaseItem
	// phaseProgressWrites counts UpdatePhaseProgress calls per phase so
	// tests can assert the zero-weight no-write path.
	phaseProgressWrites map[string]int
	seq                 int
}

func newFakePhaseStore() *fakePhaseStore {
	return &fakePhaseStore{
		phases:              make(map[string]*repository.ProjectPhase),
		items:               make(map[string][]*repository.ProjectPhaseItem),
		phaseProgressWrites: make(map[string]int),
	}
}

func (f *fakePhaseStore) addPhase(p *repository.ProjectPhase) *repository.ProjectPhase {
	if p.ID == "" {
		f.seq++
		p.ID = fmt.Sprintf("phase-%d", f.seq)
	}
	f.phases[p.ID] = p
	return p
}

func (f *fakePhaseStore) addItem(phaseID string, item *repository.ProjectPhaseItem) *repository.ProjectPhaseItem {
	f.seq++
	item.ID = fmt.Sprintf("item-%d", f.seq)
	item.PhaseID = phaseID
	f.items[phaseID] = append(f.items[phaseID], item)
	return item
}

func (f *fakePhaseStore) GetPhase(ctx context.Context, id string) (*repository.ProjectPhase, error) {
	p, ok := f.phases[id]
	if !ok {
		return nil, errors.NotFound("project_phase", id)
	}
	return p, nil
}

func (f *fakePhaseStore) ListPhases(ctx context.Context, projectID string) ([]*repository.ProjectPhase, error) {
	var out []*repository.ProjectPhase
	for _, p := range f.phases {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePhaseStore) UpdatePhaseProgress(ctx context.Context, id string, progress int) error {
	p, ok := f.phases[id]
	if !ok {
		return errors.NotFound("project_phase", id)
	}
	f.phaseProgressWrites[id]++
	p.Progress = progress
	return nil
}

func (f *fakePhaseStore) ListItems(ctx context.Context, phaseID string) ([]*repository.ProjectPhaseItem, error) {
	return f.items[phaseID], nil
}

func (f *fakePhaseStore) GetItem(ctx context.Context, id, phaseID string) (*repository.ProjectPhaseItem, error) {
	for _, item := range f.items[phaseID] {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, errors.NotFound("phase_item", id)
}

func (f *fakePhaseStore) CreateItem(ctx context.Context, item *repository.ProjectPhaseItem) error {
	f.addItem(item.PhaseID, item)
	return nil
}

func (f *fakePhaseStore) UpdateItem(ctx context.Context, item *repository.ProjectPhaseItem) error {
	for i, stored := range f.items[item.PhaseID] {
		if stored.ID == item.ID {
			f.items[item.PhaseID][i] = item
			return nil
		}
	}
	return errors.NotFound("phase_item", item.ID)
}

func (f *fakePhaseStore) DeleteItem(ctx context.Context, id, phaseID string) error {
	items := f.items[phaseID]
	for i, item := range items {
		if item.ID == id {
			f.items[phaseID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return errors.NotFound("phase_item", id)
}

// ── briefs ────────────────────────────────────────────────────────────────────

type fakeBriefStore struct {
	briefs   map[string]*repository.StrategicBrief
	sections map[string][]*repository.BriefSection
}

func newFakeBriefStore() *fakeBriefStore {
	return &fakeBriefStore{
		briefs:   make(map[string]*repository.StrategicBrief),
		sections: make(map[string][]*repository.BriefSection),
	}
}

// addBrief seeds a brief with the full section set, the first `complete` of
// them already marked complete.
func (f *fakeBriefStore) addBrief(id, status string, complete int) *repository.StrategicBrief {
	b := &repository.StrategicBrief{ID: id, Status: status}
	f.briefs[id] = b
	for i := 1; i <= repository.BriefSectionCount; i++ {
		f.sections[id] = append(f.sections[id], &repository.BriefSection{
			ID:            fmt.Sprintf("%s-sec-%d", id, i),
			BriefID:       id,
			SectionNumber: i,
			Title:         fmt.Sprintf("Section %d", i),
			IsComplete:    i <= complete,
		})
	}
	return b
}

func (f *fakeBriefStore) GetByID(ctx context.Context, id string) (*repository.StrategicBrief, error) {
	b, ok := f.briefs[id]
	if !ok {
		return nil, errors.NotFound("strategic_brief", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBriefStore) ListSections(ctx context.Context, briefID string) ([]*repository.BriefSection, error) {
	return f.sections[briefID], nil
}

func (f *fakeBriefStore) GetSection(ctx context.Context, briefID string, sectionNumber int) (*repository.BriefSection, error) {
	for _, s := range f.sections[briefID] {
		if s.SectionNumber == sectionNumber {
			return s, nil
		}
	}
	return nil, errors.NotFound("brief_section", fmt.Sprintf("%d", sectionNumber))
}

func (f *fakeBriefStore) UpdateSection(ctx context.Context, s *repository.BriefSection) error {
	for i, stored := range f.sections[s.BriefID] {
		if stored.ID == s.ID {
			f.sections[s.BriefID][i] = s
			return nil
		}
	}
	return errors.NotFound("brief_section", s.ID)
}

func (f *fakeBriefStore) UpdateCompletion(ctx context.Context, briefID string, pct int) error {
	b, ok := f.briefs[briefID]
	if !ok {
		return errors.NotFound("strategic_brief", briefID)
	}
	b.CompletionPct = pct
	return nil
}

func (f *fakeBriefStore) UpdateStatus(ctx context.Context, briefID, status string, submittedAt, approvedAt *time.Time) error {
	b, ok := f.briefs[briefID]
	if !ok {
		return errors.NotFound("strategic_brief", briefID)
	}
	b.Status = status
	if submittedAt != nil {
		b.SubmittedAt = submittedAt
	}
	if approvedAt != nil {
		b.ApprovedAt = approvedAt
	}
	return nil
}

// ── approvals ─────────────────────────────────────────────────────────────────

type fakeApprovalStore struct {
	approvals map[string]*repository.Approval
	history   []*repository.ApprovalHistoryEntry
	seq       int
}

func newFakeApprovalStore() *fakeApprovalStore {
	return &fakeApprovalStore{approvals: make(map[string]*repository.Approval)}
}

func (f *fakeApprovalStore) put(a *repository.Approval) *repository.Approval {
	if a.ID == "" {
		f.seq++
		a.ID = fmt.Sprintf("appr-%d", f.seq)
	}
	f.approvals[a.ID] = a
	return a
}

func (f *fakeApprovalStore) Create(ctx context.Context, a *repository.Approval) error {
	f.put(a)
	return nil
}

func (f *fakeApprovalStore) GetByID(ctx context.Context, id string) (*repository.Approval, error) {
	a, ok := f.approvals[id]
	if !ok {
		return nil, errors.NotFound("approval", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApprovalStore) ListPending(ctx context.Context) ([]*repository.Approval, error) {
	var out []*repository.Approval
	for _, a := range f.approvals {
		if a.Status == repository.ApprovalPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeApprovalStore) CountPending(ctx context.Context) (int, error) {
	n := 0
	for _, a := range f.approvals {
		if a.Status == repository.ApprovalPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeApprovalStore) CountEscalatedSince(ctx context.Context, since time.Time) (int, error) {
	n := 0
	for _, a := range f.approvals {
		if a.EscalatedAt != nil && !a.EscalatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeApprovalStore) UpdateEscalation(ctx context.Context, id string, level int, escalatedAt time.Time) error {
	a, ok := f.approvals[id]
	if !ok {
		return errors.NotFound("approval", id)
	}
	// Mirrors the guarded SQL update: only a pending approval moves, and
	// only upward.
	if a.Status != repository.ApprovalPending || a.EscalationLevel >= level {
		return errors.New(errors.ErrCodeConflict, "approval escalation superseded")
	}
	a.EscalationLevel = level
	a.EscalatedAt = &escalatedAt
	return nil
}

func (f *fakeApprovalStore) UpdateStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error {
	a, ok := f.approvals[id]
	if !ok {
		return errors.NotFound("approval", id)
	}
	if a.Status != repository.ApprovalPending {
		return errors.New(errors.ErrCodeConflict, "approval already decided")
	}
	a.Status = status
	a.DecidedBy = &decidedBy
	a.DecidedAt = &decidedAt
	return nil
}

func (f *fakeApprovalStore) AppendHistory(ctx context.Context, entry *repository.ApprovalHistoryEntry) error {
	f.seq++
	entry.ID = fmt.Sprintf("hist-%d", f.seq)
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeApprovalStore) ListHistory(ctx context.Context, approvalID string) ([]*repository.ApprovalHistoryEntry, error) {
	var out []*repository.ApprovalHistoryEntry
	for _, e := range f.history {
		if e.ApprovalID == approvalID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ── notifications and identity ────────────────────────────────────────────────

type publishedEvent struct {
	eventType  string
	resourceID string
	actorID    string
	recipients []string
	payload    map[string]interface{}
}

type fakeNotifier struct {
	events []publishedEvent
}

func (f *fakeNotifier) PublishProjectEvent(ctx context.Context, eventType, resourceID, actorID string, recipients []string, payload map[string]interface{}) {
	f.events = append(f.events, publishedEvent{
		eventType:  eventType,
		resourceID: resourceID,
		actorID:    actorID,
		recipients: recipients,
		payload:    payload,
	})
}

type fakeDirectory struct {
	usersByRole map[string][]string
}

func (f *fakeDirectory) GetUsersWithRole(ctx context.Context, role string) ([]string, error) {
	return f.usersByRole[role], nil
}

// fixedClock returns a Clock pinned to t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

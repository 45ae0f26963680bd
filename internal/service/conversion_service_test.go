package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

func newConversionFixture() (*ConversionService, *fakePipelineStore, *fakeProjectStore, *fakeNotifier) {
	pipelines := newFakePipelineStore()
	projects := newFakeProjectStore()
	notifier := &fakeNotifier{}
	svc := NewConversionService(pipelines, projects, notifier, logger.Nop())
	svc.clock = fixedClock(time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC))
	return svc, pipelines, projects, notifier
}

func pendingPipeline(store *fakePipelineStore) *repository.Pipeline {
	pm := "user-pm"
	planner := "user-planner"
	return store.put(&repository.Pipeline{
		ProjectName: "Brand Launch",
		Stage:       repository.StageWon,
		Decision:    repository.DecisionPending,
		NVKDID:      "user-nvkd",
		PMID:        &pm,
		PlannerID:   &planner,
		CostNSQC:    1000,
		CostMedia:   4000,
		TotalBudget: 20000,
	})
}

func TestAcceptPipelineProvisionsFullFamily(t *testing.T) {
	svc, pipelines, projects, notifier := newConversionFixture()
	p := pendingPipeline(pipelines)

	project, err := svc.AcceptPipeline(context.Background(), p.ID, "user-nvkd", nil)
	if err != nil {
		t.Fatalf("AcceptPipeline: %v", err)
	}

	if len(projects.provisions) != 1 {
		t.Fatalf("provisions = %d, want 1", len(projects.provisions))
	}
	prov := projects.provisions[0]

	if project.Status != repository.ProjectStatusStable {
		t.Fatalf("Status = %s, want STABLE", project.Status)
	}
	if project.Name != "Brand Launch" || project.Stage != repository.StageWon {
		t.Fatalf("project header wrong: %+v", project)
	}
	if !strings.HasPrefix(project.Code, "PRJ-") {
		t.Fatalf("Code = %q, want PRJ- prefix", project.Code)
	}

	if prov.Budget.TotalBudget != 20000 || prov.Budget.FeeNSQC != 1000 || prov.Budget.FeeMedia != 4000 {
		t.Fatalf("budget wrong: %+v", prov.Budget)
	}

	if len(prov.Team) != 3 {
		t.Fatalf("team = %d members, want 3", len(prov.Team))
	}
	byRole := map[string]*repository.ProjectTeamMember{}
	for _, m := range prov.Team {
		byRole[m.Role] = m
	}
	if byRole[repository.RoleNVKD].UserID != "user-nvkd" || byRole[repository.RoleNVKD].IsPrimary {
		t.Fatalf("NVKD assignment wrong: %+v", byRole[repository.RoleNVKD])
	}
	if byRole[repository.RolePM].UserID != "user-pm" || !byRole[repository.RolePM].IsPrimary {
		t.Fatalf("PM assignment wrong: %+v", byRole[repository.RolePM])
	}
	if byRole[repository.RolePlanner].UserID != "user-planner" {
		t.Fatalf("Planner assignment wrong: %+v", byRole[repository.RolePlanner])
	}

	if len(prov.Phases) != 4 {
		t.Fatalf("phases = %d, want 4", len(prov.Phases))
	}
	phaseWeights := 0
	for _, ph := range prov.Phases {
		phaseWeights += ph.Phase.Weight
		itemWeights := 0
		for _, item := range ph.Items {
			itemWeights += item.Weight
		}
		if itemWeights != 100 {
			t.Fatalf("phase %s item weights = %d, want 100", ph.Phase.PhaseType, itemWeights)
		}
	}
	if phaseWeights != 100 {
		t.Fatalf("phase weights = %d, want 100", phaseWeights)
	}
	if prov.Phases[0].Phase.PhaseType != "PLANNING" || prov.Phases[3].Phase.PhaseType != "REPORT" {
		t.Fatalf("phase order wrong: %s .. %s", prov.Phases[0].Phase.PhaseType, prov.Phases[3].Phase.PhaseType)
	}

	if prov.Brief.Status != repository.BriefDraft {
		t.Fatalf("brief status = %s, want DRAFT", prov.Brief.Status)
	}
	if len(prov.Sections) != repository.BriefSectionCount {
		t.Fatalf("sections = %d, want %d", len(prov.Sections), repository.BriefSectionCount)
	}
	if prov.Sections[0].Title != "Project Overview" || prov.Sections[15].Title != "Risks & Dependencies" {
		t.Fatalf("section catalog wrong: %q .. %q", prov.Sections[0].Title, prov.Sections[15].Title)
	}

	if len(notifier.events) != 1 || notifier.events[0].eventType != "pipeline_accepted" {
		t.Fatalf("events = %+v, want one pipeline_accepted", notifier.events)
	}
}

func TestAcceptPipelineDeduplicatesTeam(t *testing.T) {
	svc, pipelines, projects, _ := newConversionFixture()

	// Same user is both NVKD and PM; the first role wins and no duplicate
	// row is created.
	samePM := "user-nvkd"
	p := pipelines.put(&repository.Pipeline{
		ProjectName: "X",
		Stage:       repository.StageWon,
		Decision:    repository.DecisionPending,
		NVKDID:      "user-nvkd",
		PMID:        &samePM,
		TotalBudget: 1000,
	})

	if _, err := svc.AcceptPipeline(context.Background(), p.ID, "user-nvkd", nil); err != nil {
		t.Fatalf("AcceptPipeline: %v", err)
	}

	team := projects.provisions[0].Team
	if len(team) != 1 {
		t.Fatalf("team = %d members, want 1", len(team))
	}
	if team[0].Role != repository.RoleNVKD {
		t.Fatalf("role = %s, want NVKD", team[0].Role)
	}
}

func TestAcceptPipelineAlreadyDecided(t *testing.T) {
	svc, pipelines, projects, notifier := newConversionFixture()
	p := pipelines.put(&repository.Pipeline{
		ProjectName: "X",
		Stage:       repository.StageWon,
		Decision:    repository.DecisionAccepted,
		NVKDID:      "u1",
	})

	_, err := svc.AcceptPipeline(context.Background(), p.ID, "u1", nil)
	if !errors.Is(err, errors.ErrCodeAlreadyDecided) {
		t.Fatalf("got %v, want ALREADY_DECIDED", err)
	}
	if projects.provisionCalls != 0 {
		t.Fatalf("provision attempted %d times on decided pipeline", projects.provisionCalls)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("events published for rejected accept: %+v", notifier.events)
	}
}

func TestAcceptPipelineRetriesCodeCollision(t *testing.T) {
	svc, pipelines, projects, _ := newConversionFixture()
	p := pendingPipeline(pipelines)

	codes := []string{"PRJ-2608-AAAAAA", "PRJ-2608-BBBBBB", "PRJ-2608-CCCCCC"}
	calls := 0
	svc.newCode = func() string {
		code := codes[calls%len(codes)]
		calls++
		return code
	}
	projects.conflictsLeft = 2

	project, err := svc.AcceptPipeline(context.Background(), p.ID, "u1", nil)
	if err != nil {
		t.Fatalf("AcceptPipeline: %v", err)
	}
	if projects.provisionCalls != 3 {
		t.Fatalf("provision calls = %d, want 3", projects.provisionCalls)
	}
	if project.Code != "PRJ-2608-CCCCCC" {
		t.Fatalf("Code = %s, want the third generated code", project.Code)
	}
}

func TestAcceptPipelineExhaustsCodeRetries(t *testing.T) {
	svc, pipelines, projects, _ := newConversionFixture()
	p := pendingPipeline(pipelines)
	projects.conflictsLeft = maxCodeAttempts

	_, err := svc.AcceptPipeline(context.Background(), p.ID, "u1", nil)
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Fatalf("got %v, want INTERNAL after exhaustion", err)
	}
	if projects.provisionCalls != maxCodeAttempts {
		t.Fatalf("provision calls = %d, want %d", projects.provisionCalls, maxCodeAttempts)
	}
}

func TestDeclinePipeline(t *testing.T) {
	svc, pipelines, projects, notifier := newConversionFixture()
	p := pendingPipeline(pipelines)
	note := "budget withdrawn"

	got, err := svc.DeclinePipeline(context.Background(), p.ID, "user-nvkd", &note)
	if err != nil {
		t.Fatalf("DeclinePipeline: %v", err)
	}

	if got.Decision != repository.DecisionDeclined || got.Stage != repository.StageLost {
		t.Fatalf("pipeline = decision %s stage %s, want DECLINED/LOST", got.Decision, got.Stage)
	}
	if got.DecisionNote == nil || *got.DecisionNote != note {
		t.Fatalf("decision note not recorded")
	}

	stored := pipelines.pipelines[p.ID]
	if stored.Decision != repository.DecisionDeclined {
		t.Fatalf("decline not persisted")
	}
	if projects.provisionCalls != 0 {
		t.Fatalf("decline created project entities")
	}
	if len(notifier.events) != 1 || notifier.events[0].eventType != "pipeline_declined" {
		t.Fatalf("events = %+v, want one pipeline_declined", notifier.events)
	}
}

func TestDeclinePipelineAlreadyDecided(t *testing.T) {
	svc, pipelines, _, _ := newConversionFixture()
	p := pipelines.put(&repository.Pipeline{
		Stage:    repository.StageLost,
		Decision: repository.DecisionDeclined,
		NVKDID:   "u1",
	})

	_, err := svc.DeclinePipeline(context.Background(), p.ID, "u1", nil)
	if !errors.Is(err, errors.ErrCodeAlreadyDecided) {
		t.Fatalf("got %v, want ALREADY_DECIDED", err)
	}
}

func TestGenerateProjectCodeShape(t *testing.T) {
	code := GenerateProjectCode()
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != "PRJ" {
		t.Fatalf("code = %q, want PRJ-<yymm>-<suffix>", code)
	}
	if len(parts[1]) != 4 || len(parts[2]) != 6 {
		t.Fatalf("code field widths wrong: %q", code)
	}
	if code == GenerateProjectCode() && code == GenerateProjectCode() {
		t.Fatalf("generator produced identical codes repeatedly")
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

func newBriefFixture() (*BriefService, *fakeBriefStore) {
	store := newFakeBriefStore()
	svc := NewBriefService(store, logger.Nop())
	svc.clock = fixedClock(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC))
	return svc, store
}

func TestUpdateSectionRecomputesCompletion(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefDraft, 7)

	content := "audience breakdown"
	complete := true
	brief, err := svc.UpdateSection(context.Background(), "brief-1", 8, &BriefSectionPatch{
		Content:    &content,
		IsComplete: &complete,
	}, "u1")
	if err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}

	// 8 of 16 complete.
	if brief.CompletionPct != 50 {
		t.Fatalf("CompletionPct = %d, want 50", brief.CompletionPct)
	}
	if store.briefs["brief-1"].CompletionPct != 50 {
		t.Fatalf("completion not persisted")
	}

	section, _ := store.GetSection(context.Background(), "brief-1", 8)
	if section.Content == nil || *section.Content != content {
		t.Fatalf("content not persisted")
	}
	if section.UpdatedBy == nil || *section.UpdatedBy != "u1" {
		t.Fatalf("UpdatedBy not stamped")
	}
}

func TestUpdateSectionUncompleting(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefDraft, 16)

	incomplete := false
	brief, err := svc.UpdateSection(context.Background(), "brief-1", 3, &BriefSectionPatch{IsComplete: &incomplete}, "u1")
	if err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}
	// 15/16 rounds to 94.
	if brief.CompletionPct != 94 {
		t.Fatalf("CompletionPct = %d, want 94", brief.CompletionPct)
	}
}

func TestUpdateSectionRejectsApprovedBrief(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefApproved, 16)

	complete := true
	_, err := svc.UpdateSection(context.Background(), "brief-1", 1, &BriefSectionPatch{IsComplete: &complete}, "u1")
	if !errors.IsConflict(err) {
		t.Fatalf("got %v, want CONFLICT", err)
	}
}

func TestSubmitRequiresAllSectionsComplete(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefDraft, 15)

	_, err := svc.Submit(context.Background(), "brief-1", "u1")
	if !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Fatalf("got %v, want INVALID_TRANSITION", err)
	}
	if store.briefs["brief-1"].Status != repository.BriefDraft {
		t.Fatalf("incomplete submit changed status")
	}
}

func TestSubmitCompleteBrief(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefDraft, 16)

	brief, err := svc.Submit(context.Background(), "brief-1", "u1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if brief.Status != repository.BriefSubmitted {
		t.Fatalf("Status = %s, want SUBMITTED", brief.Status)
	}
	if brief.SubmittedAt == nil {
		t.Fatalf("SubmittedAt not stamped")
	}
	if store.briefs["brief-1"].Status != repository.BriefSubmitted {
		t.Fatalf("submit not persisted")
	}
}

func TestSubmitFromRevisionRequested(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefRevisionRequested, 16)

	brief, err := svc.Submit(context.Background(), "brief-1", "u1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if brief.Status != repository.BriefSubmitted {
		t.Fatalf("Status = %s, want SUBMITTED", brief.Status)
	}
}

func TestSubmitRejectsWrongStatus(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefSubmitted, 16)

	if _, err := svc.Submit(context.Background(), "brief-1", "u1"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Fatalf("got %v, want INVALID_TRANSITION", err)
	}
}

func TestApproveBrief(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefSubmitted, 16)

	brief, err := svc.Approve(context.Background(), "brief-1", "approver")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if brief.Status != repository.BriefApproved || brief.ApprovedAt == nil {
		t.Fatalf("approve result wrong: %+v", brief)
	}

	// Approved is terminal.
	if _, err := svc.Approve(context.Background(), "brief-1", "approver"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Fatalf("re-approve: got %v, want INVALID_TRANSITION", err)
	}
}

func TestApproveRequiresSubmitted(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefDraft, 16)

	if _, err := svc.Approve(context.Background(), "brief-1", "approver"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Fatalf("got %v, want INVALID_TRANSITION", err)
	}
}

func TestRequestRevision(t *testing.T) {
	svc, store := newBriefFixture()
	store.addBrief("brief-1", repository.BriefSubmitted, 16)

	brief, err := svc.RequestRevision(context.Background(), "brief-1", "approver")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if brief.Status != repository.BriefRevisionRequested {
		t.Fatalf("Status = %s, want REVISION_REQUESTED", brief.Status)
	}
	// The earlier submit stamp survives the round trip.
	if store.briefs["brief-1"].Status != repository.BriefRevisionRequested {
		t.Fatalf("revision not persisted")
	}
}

func TestGetSectionsMissingBrief(t *testing.T) {
	svc, _ := newBriefFixture()

	if _, err := svc.GetSections(context.Background(), "missing"); !errors.IsNotFound(err) {
		t.Fatalf("got %v, want NOT_FOUND", err)
	}
}

package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// ApprovalService handles approval submission and decisions. Time-driven
// escalation lives in EscalationService.
type ApprovalService struct {
	approvals ApprovalStore
	projects  ProjectStore
	notifier  Notifier
	log       *logger.Logger
	clock     Clock
}

// NewApprovalService creates a new approval service.
func NewApprovalService(approvals ApprovalStore, projects ProjectStore, notifier Notifier, log *logger.Logger) *ApprovalService {
	return &ApprovalService{
		approvals: approvals,
		projects:  projects,
		notifier:  notifier,
		log:       log,
		clock:     time.Now,
	}
}

// SubmitApprovalRequest represents a new approval submission.
type SubmitApprovalRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	SubmittedBy string `json:"submitted_by"`
}

// SubmitApproval creates a PENDING approval at escalation level 0.
func (s *ApprovalService) SubmitApproval(ctx context.Context, req *SubmitApprovalRequest) (*repository.Approval, error) {
	if req.Title == "" {
		return nil, errors.InvalidInput("title", "title is required")
	}

	exists, err := s.projects.Exists(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("project", req.ProjectID)
	}

	a := &repository.Approval{
		ProjectID:       req.ProjectID,
		Title:           req.Title,
		Status:          repository.ApprovalPending,
		EscalationLevel: 0,
		SubmittedAt:     s.clock(),
		SubmittedByID:   req.SubmittedBy,
	}
	if err := s.approvals.Create(ctx, a); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &repository.ApprovalHistoryEntry{
		ApprovalID: a.ID,
		ProjectID:  a.ProjectID,
		FromStatus: repository.ApprovalPending,
		ToStatus:   repository.ApprovalPending,
		ActorID:    req.SubmittedBy,
		Comment:    strPtr("submitted for approval"),
	})

	s.log.Info().
		Str("approval_id", a.ID).
		Str("project_id", a.ProjectID).
		Str("submitted_by", req.SubmittedBy).
		Msg("Approval submitted")

	return a, nil
}

var approvalDecisions = map[string]bool{
	repository.ApprovalApproved:         true,
	repository.ApprovalRejected:         true,
	repository.ApprovalChangesRequested: true,
}

// DecideApproval records a decision on a pending approval.
func (s *ApprovalService) DecideApproval(ctx context.Context, approvalID, userID, decision string, comment *string) (*repository.Approval, error) {
	if !approvalDecisions[decision] {
		return nil, errors.InvalidInput("decision", "invalid approval decision")
	}

	a, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if a.Status != repository.ApprovalPending {
		return nil, errors.InvalidTransition("approval", a.Status, decision)
	}

	now := s.clock()
	if err := s.approvals.UpdateStatus(ctx, approvalID, decision, userID, now); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &repository.ApprovalHistoryEntry{
		ApprovalID: a.ID,
		ProjectID:  a.ProjectID,
		FromStatus: repository.ApprovalPending,
		ToStatus:   decision,
		ActorID:    userID,
		Comment:    comment,
	})

	s.log.Info().
		Str("approval_id", approvalID).
		Str("decision", decision).
		Str("decided_by", userID).
		Msg("Approval decided")

	if s.notifier != nil {
		s.notifier.PublishProjectEvent(ctx, "approval_decided", approvalID, userID,
			[]string{a.SubmittedByID}, map[string]interface{}{
				"project_id": a.ProjectID,
				"decision":   decision,
			})
	}

	a.Status = decision
	a.DecidedBy = &userID
	a.DecidedAt = &now
	return a, nil
}

// GetApproval retrieves an approval by ID.
func (s *ApprovalService) GetApproval(ctx context.Context, id string) (*repository.Approval, error) {
	return s.approvals.GetByID(ctx, id)
}

// GetApprovalHistory returns the full trail for an approval.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, approvalID string) ([]*repository.ApprovalHistoryEntry, error) {
	if _, err := s.approvals.GetByID(ctx, approvalID); err != nil {
		return nil, err
	}
	return s.approvals.ListHistory(ctx, approvalID)
}

// appendHistory writes a trail entry, logging a warning on failure rather
// than propagating it.
func (s *ApprovalService) appendHistory(ctx context.Context, entry *repository.ApprovalHistoryEntry) {
	if err := s.approvals.AppendHistory(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("approval_id", entry.ApprovalID).
			Msg("Failed to append approval history")
	}
}

func strPtr(s string) *string {
	return &s
}

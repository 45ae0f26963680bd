package service

import (
	"context"
	"math"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// BriefTransition is the shape shared by the brief status transitions
// (submit, approve, request revision).
type BriefTransition func(ctx context.Context, briefID, userID string) (*repository.StrategicBrief, error)

// BriefService handles strategic brief section tracking and its approval
// state machine.
type BriefService struct {
	briefs BriefStore
	log    *logger.Logger
	clock  Clock
}

// NewBriefService creates a new brief service.
func NewBriefService(briefs BriefStore, log *logger.Logger) *BriefService {
	return &BriefService{
		briefs: briefs,
		log:    log,
		clock:  time.Now,
	}
}

// GetBrief retrieves a brief header by ID.
func (s *BriefService) GetBrief(ctx context.Context, id string) (*repository.StrategicBrief, error) {
	return s.briefs.GetByID(ctx, id)
}

// GetSections returns the 16 sections of a brief.
func (s *BriefService) GetSections(ctx context.Context, briefID string) ([]*repository.BriefSection, error) {
	if _, err := s.briefs.GetByID(ctx, briefID); err != nil {
		return nil, err
	}
	return s.briefs.ListSections(ctx, briefID)
}

// BriefSectionPatch is a partial update to one brief section.
type BriefSectionPatch struct {
	Content    *string `json:"content"`
	IsComplete *bool   `json:"is_complete"`
}

// UpdateSection applies a patch to a section and unconditionally recomputes
// the brief's completion percentage, whether or not the completion flag
// changed.
func (s *BriefService) UpdateSection(ctx context.Context, briefID string, sectionNumber int, patch *BriefSectionPatch, userID string) (*repository.StrategicBrief, error) {
	brief, err := s.briefs.GetByID(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if brief.Status == repository.BriefApproved {
		return nil, errors.New(errors.ErrCodeConflict, "cannot edit an approved brief")
	}

	section, err := s.briefs.GetSection(ctx, briefID, sectionNumber)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil {
		section.Content = patch.Content
	}
	if patch.IsComplete != nil {
		section.IsComplete = *patch.IsComplete
	}
	section.UpdatedBy = &userID

	if err := s.briefs.UpdateSection(ctx, section); err != nil {
		return nil, err
	}

	pct, err := s.recomputeCompletion(ctx, briefID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("brief_id", briefID).
		Int("section", sectionNumber).
		Int("completion_pct", pct).
		Str("actor_id", userID).
		Msg("Brief section updated")

	brief.CompletionPct = pct
	return brief, nil
}

// Submit moves a brief to SUBMITTED. Only allowed from DRAFT or
// REVISION_REQUESTED, and only when every section is complete.
func (s *BriefService) Submit(ctx context.Context, briefID, userID string) (*repository.StrategicBrief, error) {
	brief, err := s.briefs.GetByID(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if brief.Status != repository.BriefDraft && brief.Status != repository.BriefRevisionRequested {
		return nil, errors.InvalidTransition("strategic_brief", brief.Status, repository.BriefSubmitted)
	}

	// Recompute from the sections rather than trusting the stored header.
	pct, err := s.recomputeCompletion(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if pct < 100 {
		return nil, errors.Newf(errors.ErrCodeInvalidTransition,
			"cannot submit brief: sections incomplete (%d%%)", pct)
	}

	now := s.clock()
	if err := s.briefs.UpdateStatus(ctx, briefID, repository.BriefSubmitted, &now, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("brief_id", briefID).
		Str("submitted_by", userID).
		Msg("Brief submitted")

	brief.Status = repository.BriefSubmitted
	brief.CompletionPct = pct
	brief.SubmittedAt = &now
	return brief, nil
}

// Approve moves a submitted brief to its terminal APPROVED state.
func (s *BriefService) Approve(ctx context.Context, briefID, userID string) (*repository.StrategicBrief, error) {
	brief, err := s.briefs.GetByID(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if brief.Status != repository.BriefSubmitted {
		return nil, errors.InvalidTransition("strategic_brief", brief.Status, repository.BriefApproved)
	}

	now := s.clock()
	if err := s.briefs.UpdateStatus(ctx, briefID, repository.BriefApproved, nil, &now); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("brief_id", briefID).
		Str("approved_by", userID).
		Msg("Brief approved")

	brief.Status = repository.BriefApproved
	brief.ApprovedAt = &now
	return brief, nil
}

// RequestRevision sends a submitted brief back for rework.
func (s *BriefService) RequestRevision(ctx context.Context, briefID, userID string) (*repository.StrategicBrief, error) {
	brief, err := s.briefs.GetByID(ctx, briefID)
	if err != nil {
		return nil, err
	}
	if brief.Status != repository.BriefSubmitted {
		return nil, errors.InvalidTransition("strategic_brief", brief.Status, repository.BriefRevisionRequested)
	}

	if err := s.briefs.UpdateStatus(ctx, briefID, repository.BriefRevisionRequested, nil, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("brief_id", briefID).
		Str("requested_by", userID).
		Msg("Brief revision requested")

	brief.Status = repository.BriefRevisionRequested
	return brief, nil
}

// recomputeCompletion derives the completion percentage from the sections
// and persists it to the brief header.
func (s *BriefService) recomputeCompletion(ctx context.Context, briefID string) (int, error) {
	sections, err := s.briefs.ListSections(ctx, briefID)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, section := range sections {
		if section.IsComplete {
			completed++
		}
	}

	pct := int(math.Round(float64(completed) * 100 / float64(repository.BriefSectionCount)))
	if err := s.briefs.UpdateCompletion(ctx, briefID, pct); err != nil {
		return 0, err
	}
	return pct, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-agency-projects/internal/platform/logger"
	"github.com/pesio-ai/be-agency-projects/internal/repository"
)

// Escalation roles queried from the identity directory.
const (
	roleApprover = "APPROVER"
	roleAdmin    = "ADMIN"
)

// escalationThresholds maps elapsed pending hours to target levels, highest
// first. An approval jumps directly to the highest threshold it has met.
var escalationThresholds = []struct {
	hours float64
	level int
}{
	{72, 3},
	{48, 2},
	{24, 1},
}

// escalationWindow is the lookback used to report how many approvals a
// trigger escalated.
const escalationWindow = 60 * time.Second

// EscalationCheckResult summarizes one manual trigger run.
type EscalationCheckResult struct {
	Checked   int `json:"checked"`
	Escalated int `json:"escalated"`
}

// EscalationService bumps pending approvals to higher escalation levels as
// they age. Levels only ever go up while an approval stays pending, and a
// scan is a no-op for approvals already at their target level, so
// overlapping runs are safe.
type EscalationService struct {
	approvals ApprovalStore
	projects  ProjectStore
	identity  IdentityDirectory
	notifier  Notifier
	log       *logger.Logger
	clock     Clock
}

// NewEscalationService creates a new escalation service.
func NewEscalationService(approvals ApprovalStore, projects ProjectStore, identity IdentityDirectory, notifier Notifier, log *logger.Logger) *EscalationService {
	return &EscalationService{
		approvals: approvals,
		projects:  projects,
		identity:  identity,
		notifier:  notifier,
		log:       log,
		clock:     time.Now,
	}
}

// targetLevel returns the highest escalation level the elapsed pending time
// has earned, 0 when below every threshold.
func targetLevel(hoursElapsed float64) int {
	for _, t := range escalationThresholds {
		if hoursElapsed >= t.hours {
			return t.level
		}
	}
	return 0
}

// RunOnce scans all pending approvals against now and escalates the ones
// that have outgrown their current level. The periodic trigger is external;
// this scan is idempotent. Returns the number of approvals escalated.
func (s *EscalationService) RunOnce(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.approvals.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, a := range pending {
		hoursElapsed := now.Sub(a.SubmittedAt).Hours()
		target := targetLevel(hoursElapsed)
		if target <= a.EscalationLevel {
			continue
		}

		if err := s.approvals.UpdateEscalation(ctx, a.ID, target, now); err != nil {
			// Likely lost a race with a concurrent scan or a decision;
			// the next run converges.
			s.log.Warn().Err(err).
				Str("approval_id", a.ID).
				Int("target_level", target).
				Msg("Failed to persist escalation")
			continue
		}

		comment := fmt.Sprintf("pending for %dh, escalated from level %d to level %d",
			int(hoursElapsed), a.EscalationLevel, target)
		// Status itself does not change on escalation, so the trail row
		// records PENDING on both sides.
		if err := s.approvals.AppendHistory(ctx, &repository.ApprovalHistoryEntry{
			ApprovalID: a.ID,
			ProjectID:  a.ProjectID,
			FromStatus: repository.ApprovalPending,
			ToStatus:   repository.ApprovalPending,
			ActorID:    "system",
			Comment:    &comment,
			Metadata: map[string]interface{}{
				"hours_elapsed": int(hoursElapsed),
				"from_level":    a.EscalationLevel,
				"to_level":      target,
			},
		}); err != nil {
			s.log.Warn().Err(err).
				Str("approval_id", a.ID).
				Msg("Failed to append escalation history")
		}

		s.log.Info().
			Str("approval_id", a.ID).
			Str("project_id", a.ProjectID).
			Int("from_level", a.EscalationLevel).
			Int("to_level", target).
			Int("hours_elapsed", int(hoursElapsed)).
			Msg("Approval escalated")

		s.dispatchEscalation(ctx, a, target, int(hoursElapsed))
		escalated++
	}

	return escalated, nil
}

// TriggerEscalationCheck is the manual entry point. It reports how many
// pending approvals were scanned and how many were escalated within the
// trailing window.
func (s *EscalationService) TriggerEscalationCheck(ctx context.Context) (*EscalationCheckResult, error) {
	checked, err := s.approvals.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if _, err := s.RunOnce(ctx, now); err != nil {
		return nil, err
	}

	escalated, err := s.approvals.CountEscalatedSince(ctx, now.Add(-escalationWindow))
	if err != nil {
		return nil, err
	}

	return &EscalationCheckResult{Checked: checked, Escalated: escalated}, nil
}

// dispatchEscalation notifies the audience for the new level. Level 1 goes
// to approvers, level 2 to the project's PMs, level 3 to admins. Dispatch
// failures never block the escalation state write.
func (s *EscalationService) dispatchEscalation(ctx context.Context, a *repository.Approval, level, hoursElapsed int) {
	if s.notifier == nil {
		return
	}

	var recipients []string
	var err error
	switch level {
	case 1:
		recipients, err = s.identity.GetUsersWithRole(ctx, roleApprover)
	case 2:
		recipients, err = s.projects.ListPMUserIDs(ctx, a.ProjectID)
	case 3:
		recipients, err = s.identity.GetUsersWithRole(ctx, roleAdmin)
	}
	if err != nil {
		s.log.Warn().Err(err).
			Str("approval_id", a.ID).
			Int("level", level).
			Msg("Could not resolve escalation recipients")
		return
	}
	if len(recipients) == 0 {
		return
	}

	s.notifier.PublishProjectEvent(ctx, "approval_escalated", a.ID, "system", recipients,
		map[string]interface{}{
			"project_id":    a.ProjectID,
			"level":         level,
			"hours_elapsed": hoursElapsed,
		})
}

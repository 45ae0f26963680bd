package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// ApprovalRepository handles approvals and their append-only history trail.
type ApprovalRepository struct {
	db *database.DB
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(db *database.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const approvalColumns = `
	id, project_id, title, status, escalation_level,
	submitted_at, escalated_at, submitted_by, decided_by, decided_at,
	created_at, updated_at`

// Create inserts a new approval.
func (r *ApprovalRepository) Create(ctx context.Context, a *Approval) error {
	query := `
		INSERT INTO approvals (project_id, title, status, escalation_level,
		                       submitted_at, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		a.ProjectID,
		a.Title,
		a.Status,
		a.EscalationLevel,
		a.SubmittedAt,
		a.SubmittedByID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval")
	}
	return nil
}

// GetByID retrieves an approval by ID.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`

	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval")
	}
	return a, nil
}

// ListPending returns all approvals still awaiting a decision, oldest first.
func (r *ApprovalRepository) ListPending(ctx context.Context) ([]*Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE status = $1 ORDER BY submitted_at ASC`

	rows, err := r.db.Query(ctx, query, ApprovalPending)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending approvals")
	}
	defer rows.Close()

	approvals := make([]*Approval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval")
		}
		approvals = append(approvals, a)
	}
	return approvals, nil
}

// CountPending returns the number of approvals awaiting a decision.
func (r *ApprovalRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM approvals WHERE status = $1`, ApprovalPending).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count pending approvals")
	}
	return count, nil
}

// CountEscalatedSince returns the number of approvals whose last escalation
// happened at or after the given time.
func (r *ApprovalRepository) CountEscalatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM approvals WHERE escalated_at >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count escalated approvals")
	}
	return count, nil
}

// UpdateEscalation raises the escalation level. The guard in the WHERE clause
// keeps the level monotonic even under overlapping scans.
func (r *ApprovalRepository) UpdateEscalation(ctx context.Context, id string, level int, escalatedAt time.Time) error {
	query := `
		UPDATE approvals
		SET escalation_level = $2,
		    escalated_at     = $3,
		    updated_at       = NOW()
		WHERE id = $1
		  AND status = $4
		  AND escalation_level < $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, level, escalatedAt, ApprovalPending).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "approval is not pending or already at this escalation level")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval escalation")
	}
	return nil
}

// UpdateStatus records a decision on a pending approval.
func (r *ApprovalRepository) UpdateStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error {
	query := `
		UPDATE approvals
		SET status     = $2,
		    decided_by = $3,
		    decided_at = $4,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $5
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, decidedBy, decidedAt, ApprovalPending).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeConflict, "approval is not pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval status")
	}
	return nil
}

// AppendHistory inserts one immutable history row.
func (r *ApprovalRepository) AppendHistory(ctx context.Context, entry *ApprovalHistoryEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal history metadata")
		}
	}

	query := `
		INSERT INTO approval_history (approval_id, project_id, from_status, to_status,
		                              actor_id, comment, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.ApprovalID,
		entry.ProjectID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.Comment,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append approval history")
	}
	return nil
}

// ListHistory returns the full trail for an approval, oldest first.
func (r *ApprovalRepository) ListHistory(ctx context.Context, approvalID string) ([]*ApprovalHistoryEntry, error) {
	query := `
		SELECT id, approval_id, project_id, from_status, to_status,
		       actor_id, comment, metadata, created_at
		FROM approval_history
		WHERE approval_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, approvalID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval history")
	}
	defer rows.Close()

	entries := make([]*ApprovalHistoryEntry, 0)
	for rows.Next() {
		entry := &ApprovalHistoryEntry{}
		var metadataJSON []byte
		err := rows.Scan(&entry.ID, &entry.ApprovalID, &entry.ProjectID,
			&entry.FromStatus, &entry.ToStatus, &entry.ActorID, &entry.Comment,
			&metadataJSON, &entry.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan history entry")
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal history metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type approvalScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row approvalScanner) (*Approval, error) {
	a := &Approval{}
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.Title,
		&a.Status,
		&a.EscalationLevel,
		&a.SubmittedAt,
		&a.EscalatedAt,
		&a.SubmittedByID,
		&a.DecidedBy,
		&a.DecidedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

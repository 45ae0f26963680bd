package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// BudgetEventRepository handles the append-only budget ledger. Rows are
// immutable after creation except for their status.
type BudgetEventRepository struct {
	db *database.DB
}

// NewBudgetEventRepository creates a new budget event repository.
func NewBudgetEventRepository(db *database.DB) *BudgetEventRepository {
	return &BudgetEventRepository{db: db}
}

const budgetEventColumns = `
	id, project_id, media_plan_id, stage, amount, type, category, status,
	created_by, created_at`

// Create inserts one ledger row.
func (r *BudgetEventRepository) Create(ctx context.Context, e *BudgetEvent) error {
	query := `
		INSERT INTO budget_events (project_id, media_plan_id, stage, amount,
		                           type, category, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		e.ProjectID,
		e.MediaPlanID,
		e.Stage,
		e.Amount,
		e.Type,
		e.Category,
		e.Status,
		e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create budget event")
	}
	return nil
}

// GetByID retrieves an event, scoped to its project so a cross-project ID
// mismatch reads as not found.
func (r *BudgetEventRepository) GetByID(ctx context.Context, id, projectID string) (*BudgetEvent, error) {
	query := `SELECT ` + budgetEventColumns + ` FROM budget_events WHERE id = $1 AND project_id = $2`

	e, err := scanBudgetEvent(r.db.QueryRow(ctx, query, id, projectID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("budget_event", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get budget event")
	}
	return e, nil
}

// UpdateStatus changes the status of an event. Status is the only mutable
// column.
func (r *BudgetEventRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE budget_events
		SET status = $2
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("budget_event", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update budget event status")
	}
	return nil
}

// SumApprovedSpend returns the full-ledger sum of approved SPEND amounts for
// a project, 0 when there are none.
func (r *BudgetEventRepository) SumApprovedSpend(ctx context.Context, projectID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM budget_events
		WHERE project_id = $1 AND type = $2 AND status = $3
	`

	var total int64
	err := r.db.QueryRow(ctx, query, projectID, EventTypeSpend, EventStatusApproved).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to sum approved spend")
	}
	return total, nil
}

// ListByProject returns all ledger rows for a project, newest first.
func (r *BudgetEventRepository) ListByProject(ctx context.Context, projectID string) ([]*BudgetEvent, error) {
	query := `SELECT ` + budgetEventColumns + ` FROM budget_events WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list budget events")
	}
	defer rows.Close()

	events := make([]*BudgetEvent, 0)
	for rows.Next() {
		e, err := scanBudgetEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan budget event")
		}
		events = append(events, e)
	}
	return events, nil
}

// MediaPlanBelongs reports whether a media plan exists under the given
// project.
func (r *BudgetEventRepository) MediaPlanBelongs(ctx context.Context, mediaPlanID, projectID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM media_plans WHERE id = $1 AND project_id = $2)`

	var belongs bool
	err := r.db.QueryRow(ctx, query, mediaPlanID, projectID).Scan(&belongs)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check media plan ownership")
	}
	return belongs, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type budgetEventScanner interface {
	Scan(dest ...any) error
}

func scanBudgetEvent(row budgetEventScanner) (*BudgetEvent, error) {
	e := &BudgetEvent{}
	err := row.Scan(
		&e.ID,
		&e.ProjectID,
		&e.MediaPlanID,
		&e.Stage,
		&e.Amount,
		&e.Type,
		&e.Category,
		&e.Status,
		&e.CreatedBy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

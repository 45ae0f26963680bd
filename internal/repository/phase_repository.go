package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// PhaseRepository handles project phases and their checklist items. Phases
// themselves are created only during provisioning; items can be mutated.
type PhaseRepository struct {
	db *database.DB
}

// NewPhaseRepository creates a new phase repository.
func NewPhaseRepository(db *database.DB) *PhaseRepository {
	return &PhaseRepository{db: db}
}

// GetPhase retrieves a phase by ID.
func (r *PhaseRepository) GetPhase(ctx context.Context, id string) (*ProjectPhase, error) {
	query := `
		SELECT id, project_id, phase_type, weight, progress, order_index,
		       created_at, updated_at
		FROM project_phases
		WHERE id = $1
	`

	p := &ProjectPhase{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.ProjectID,
		&p.PhaseType,
		&p.Weight,
		&p.Progress,
		&p.OrderIndex,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("project_phase", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get phase")
	}
	return p, nil
}

// ListPhases returns all phases of a project ordered by order_index.
func (r *PhaseRepository) ListPhases(ctx context.Context, projectID string) ([]*ProjectPhase, error) {
	query := `
		SELECT id, project_id, phase_type, weight, progress, order_index,
		       created_at, updated_at
		FROM project_phases
		WHERE project_id = $1
		ORDER BY order_index ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list phases")
	}
	defer rows.Close()

	phases := make([]*ProjectPhase, 0)
	for rows.Next() {
		p := &ProjectPhase{}
		err := rows.Scan(&p.ID, &p.ProjectID, &p.PhaseType, &p.Weight, &p.Progress,
			&p.OrderIndex, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan phase")
		}
		phases = append(phases, p)
	}
	return phases, nil
}

// UpdatePhaseProgress writes the recomputed phase progress. This is the only
// write path for the derived field.
func (r *PhaseRepository) UpdatePhaseProgress(ctx context.Context, id string, progress int) error {
	query := `
		UPDATE project_phases
		SET progress   = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, progress).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("project_phase", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update phase progress")
	}
	return nil
}

// ── items ─────────────────────────────────────────────────────────────────────

// ListItems returns all items of a phase ordered by order_index.
func (r *PhaseRepository) ListItems(ctx context.Context, phaseID string) ([]*ProjectPhaseItem, error) {
	query := `
		SELECT id, phase_id, name, weight, is_complete, order_index,
		       created_at, updated_at
		FROM project_phase_items
		WHERE phase_id = $1
		ORDER BY order_index ASC
	`

	rows, err := r.db.Query(ctx, query, phaseID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list phase items")
	}
	defer rows.Close()

	items := make([]*ProjectPhaseItem, 0)
	for rows.Next() {
		item := &ProjectPhaseItem{}
		err := rows.Scan(&item.ID, &item.PhaseID, &item.Name, &item.Weight,
			&item.IsComplete, &item.OrderIndex, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan phase item")
		}
		items = append(items, item)
	}
	return items, nil
}

// GetItem retrieves an item, scoped to its phase.
func (r *PhaseRepository) GetItem(ctx context.Context, id, phaseID string) (*ProjectPhaseItem, error) {
	query := `
		SELECT id, phase_id, name, weight, is_complete, order_index,
		       created_at, updated_at
		FROM project_phase_items
		WHERE id = $1 AND phase_id = $2
	`

	item := &ProjectPhaseItem{}
	err := r.db.QueryRow(ctx, query, id, phaseID).Scan(
		&item.ID,
		&item.PhaseID,
		&item.Name,
		&item.Weight,
		&item.IsComplete,
		&item.OrderIndex,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("phase_item", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get phase item")
	}
	return item, nil
}

// CreateItem inserts a new checklist item.
func (r *PhaseRepository) CreateItem(ctx context.Context, item *ProjectPhaseItem) error {
	query := `
		INSERT INTO project_phase_items (phase_id, name, weight, is_complete, order_index)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		item.PhaseID,
		item.Name,
		item.Weight,
		item.IsComplete,
		item.OrderIndex,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create phase item")
	}
	return nil
}

// UpdateItem persists all mutable item fields.
func (r *PhaseRepository) UpdateItem(ctx context.Context, item *ProjectPhaseItem) error {
	query := `
		UPDATE project_phase_items
		SET name        = $2,
		    weight      = $3,
		    is_complete = $4,
		    order_index = $5,
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.Name,
		item.Weight,
		item.IsComplete,
		item.OrderIndex,
	).Scan(&item.UpdatedAt)

	if err == pgx.ErrNoRows {
		return errors.NotFound("phase_item", item.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update phase item")
	}
	return nil
}

// DeleteItem removes an item from a phase.
func (r *PhaseRepository) DeleteItem(ctx context.Context, id, phaseID string) error {
	query := `DELETE FROM project_phase_items WHERE id = $1 AND phase_id = $2`

	tag, err := r.db.Exec(ctx, query, id, phaseID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete phase item")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("phase_item", id)
	}
	return nil
}

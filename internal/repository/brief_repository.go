package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// BriefRepository handles strategic briefs and their sections. Briefs are
// created only during provisioning.
type BriefRepository struct {
	db *database.DB
}

// NewBriefRepository creates a new brief repository.
func NewBriefRepository(db *database.DB) *BriefRepository {
	return &BriefRepository{db: db}
}

// GetByID retrieves a brief header by ID.
func (r *BriefRepository) GetByID(ctx context.Context, id string) (*StrategicBrief, error) {
	query := `
		SELECT id, project_id, pipeline_id, status, completion_pct,
		       submitted_at, approved_at, created_at, updated_at
		FROM strategic_briefs
		WHERE id = $1
	`

	b := &StrategicBrief{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.ProjectID,
		&b.PipelineID,
		&b.Status,
		&b.CompletionPct,
		&b.SubmittedAt,
		&b.ApprovedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("strategic_brief", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get brief")
	}
	return b, nil
}

// ListSections returns all sections of a brief ordered by section number.
func (r *BriefRepository) ListSections(ctx context.Context, briefID string) ([]*BriefSection, error) {
	query := `
		SELECT id, brief_id, section_number, title, content, is_complete,
		       updated_by, updated_at
		FROM brief_sections
		WHERE brief_id = $1
		ORDER BY section_number ASC
	`

	rows, err := r.db.Query(ctx, query, briefID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list brief sections")
	}
	defer rows.Close()

	sections := make([]*BriefSection, 0)
	for rows.Next() {
		s := &BriefSection{}
		err := rows.Scan(&s.ID, &s.BriefID, &s.SectionNumber, &s.Title, &s.Content,
			&s.IsComplete, &s.UpdatedBy, &s.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan brief section")
		}
		sections = append(sections, s)
	}
	return sections, nil
}

// GetSection retrieves one section by its number within a brief.
func (r *BriefRepository) GetSection(ctx context.Context, briefID string, sectionNumber int) (*BriefSection, error) {
	query := `
		SELECT id, brief_id, section_number, title, content, is_complete,
		       updated_by, updated_at
		FROM brief_sections
		WHERE brief_id = $1 AND section_number = $2
	`

	s := &BriefSection{}
	err := r.db.QueryRow(ctx, query, briefID, sectionNumber).Scan(
		&s.ID,
		&s.BriefID,
		&s.SectionNumber,
		&s.Title,
		&s.Content,
		&s.IsComplete,
		&s.UpdatedBy,
		&s.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("brief_section", briefID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get brief section")
	}
	return s, nil
}

// UpdateSection persists a section's content and completion flag.
func (r *BriefRepository) UpdateSection(ctx context.Context, s *BriefSection) error {
	query := `
		UPDATE brief_sections
		SET content     = $2,
		    is_complete = $3,
		    updated_by  = $4,
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query, s.ID, s.Content, s.IsComplete, s.UpdatedBy).Scan(&s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errors.NotFound("brief_section", s.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update brief section")
	}
	return nil
}

// UpdateCompletion writes the recomputed completion percentage to the brief
// header.
func (r *BriefRepository) UpdateCompletion(ctx context.Context, briefID string, pct int) error {
	query := `
		UPDATE strategic_briefs
		SET completion_pct = $2,
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, briefID, pct).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("strategic_brief", briefID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update brief completion")
	}
	return nil
}

// UpdateStatus changes the brief status, optionally stamping submitted_at or
// approved_at.
func (r *BriefRepository) UpdateStatus(ctx context.Context, briefID, status string, submittedAt, approvedAt *time.Time) error {
	query := `
		UPDATE strategic_briefs
		SET status       = $2,
		    submitted_at = COALESCE($3, submitted_at),
		    approved_at  = COALESCE($4, approved_at),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, briefID, status, submittedAt, approvedAt).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("strategic_brief", briefID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update brief status")
	}
	return nil
}

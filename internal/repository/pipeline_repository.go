package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// PipelineRepository handles pipeline data operations.
type PipelineRepository struct {
	db *database.DB
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *database.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

const pipelineColumns = `
	id, project_name, product_type, stage, decision,
	cost_nsqc, cost_design, cost_media, cost_kol, cost_other,
	total_budget, cogs, gross_profit, profit_margin,
	nvkd_id, pm_id, planner_id, project_id,
	decision_date, decision_note, decided_by,
	created_by, created_at, updated_at`

// Create inserts a new pipeline. Stage and decision are expected to be
// LEAD / PENDING for new records.
func (r *PipelineRepository) Create(ctx context.Context, p *Pipeline) error {
	query := `
		INSERT INTO pipelines (project_name, product_type, stage, decision,
		                       cost_nsqc, cost_design, cost_media, cost_kol, cost_other,
		                       total_budget, cogs, gross_profit, profit_margin,
		                       nvkd_id, pm_id, planner_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ProjectName,
		p.ProductType,
		p.Stage,
		p.Decision,
		p.CostNSQC,
		p.CostDesign,
		p.CostMedia,
		p.CostKOL,
		p.CostOther,
		p.TotalBudget,
		p.COGS,
		p.GrossProfit,
		p.ProfitMargin,
		p.NVKDID,
		p.PMID,
		p.PlannerID,
		p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create pipeline")
	}
	return nil
}

// GetByID retrieves a pipeline by ID.
func (r *PipelineRepository) GetByID(ctx context.Context, id string) (*Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE id = $1`

	p, err := scanPipeline(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("pipeline", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get pipeline")
	}
	return p, nil
}

// UpdateStage moves a pipeline to a new stage. Transition validity is checked
// by the service layer.
func (r *PipelineRepository) UpdateStage(ctx context.Context, id, stage string) error {
	query := `
		UPDATE pipelines
		SET stage      = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, stage).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("pipeline", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update pipeline stage")
	}
	return nil
}

// UpdateEvaluation persists the cost inputs and the derived financial fields
// together so they can never drift apart.
func (r *PipelineRepository) UpdateEvaluation(ctx context.Context, p *Pipeline) error {
	query := `
		UPDATE pipelines
		SET cost_nsqc     = $2,
		    cost_design   = $3,
		    cost_media    = $4,
		    cost_kol      = $5,
		    cost_other    = $6,
		    total_budget  = $7,
		    cogs          = $8,
		    gross_profit  = $9,
		    profit_margin = $10,
		    updated_at    = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.CostNSQC,
		p.CostDesign,
		p.CostMedia,
		p.CostKOL,
		p.CostOther,
		p.TotalBudget,
		p.COGS,
		p.GrossProfit,
		p.ProfitMargin,
	).Scan(&p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return errors.NotFound("pipeline", p.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update pipeline evaluation")
	}
	return nil
}

// AppendNote inserts one weekly note. Notes are append-only.
func (r *PipelineRepository) AppendNote(ctx context.Context, n *PipelineNote) error {
	query := `
		INSERT INTO pipeline_notes (pipeline_id, week, note_date, note, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.PipelineID,
		n.Week,
		n.NoteDate,
		n.Note,
		n.AuthorID,
	).Scan(&n.ID, &n.CreatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append pipeline note")
	}
	return nil
}

// ListNotes returns all weekly notes for a pipeline ordered by week.
func (r *PipelineRepository) ListNotes(ctx context.Context, pipelineID string) ([]*PipelineNote, error) {
	query := `
		SELECT id, pipeline_id, week, note_date, note, author_id, created_at
		FROM pipeline_notes
		WHERE pipeline_id = $1
		ORDER BY week ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pipeline notes")
	}
	defer rows.Close()

	notes := make([]*PipelineNote, 0)
	for rows.Next() {
		n := &PipelineNote{}
		err := rows.Scan(&n.ID, &n.PipelineID, &n.Week, &n.NoteDate, &n.Note, &n.AuthorID, &n.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan pipeline note")
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// MarkDeclined stamps the decline decision. The WHERE clause guards against
// a concurrent decision; zero rows means the pipeline was already decided.
func (r *PipelineRepository) MarkDeclined(ctx context.Context, id, decidedBy string, note *string, decidedAt time.Time) error {
	query := `
		UPDATE pipelines
		SET decision      = $2,
		    stage         = $3,
		    decision_date = $4,
		    decision_note = $5,
		    decided_by    = $6,
		    updated_at    = NOW()
		WHERE id = $1
		  AND decision = $7
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id,
		DecisionDeclined, StageLost, decidedAt, note, decidedBy, DecisionPending,
	).Scan(&returnedID)

	if err == pgx.ErrNoRows {
		return errors.New(errors.ErrCodeAlreadyDecided, "pipeline has already been decided")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decline pipeline")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type pipelineScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row pipelineScanner) (*Pipeline, error) {
	p := &Pipeline{}
	err := row.Scan(
		&p.ID,
		&p.ProjectName,
		&p.ProductType,
		&p.Stage,
		&p.Decision,
		&p.CostNSQC,
		&p.CostDesign,
		&p.CostMedia,
		&p.CostKOL,
		&p.CostOther,
		&p.TotalBudget,
		&p.COGS,
		&p.GrossProfit,
		&p.ProfitMargin,
		&p.NVKDID,
		&p.PMID,
		&p.PlannerID,
		&p.ProjectID,
		&p.DecisionDate,
		&p.DecisionNote,
		&p.DecidedBy,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

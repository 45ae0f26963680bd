package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// ProjectRepository handles the project family: project, budget, team,
// phases and items.
type ProjectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProvision inserts the whole project family and stamps the pipeline
// decision in one transaction. Any failure rolls back every write, so a
// caller can retry acceptance without leaked partial state. A project-code
// collision surfaces as a CONFLICT error.
func (r *ProjectRepository) CreateProvision(ctx context.Context, prov *ProjectProvision) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		// Project first: dependents need its identity.
		projectQuery := `
			INSERT INTO projects (code, name, product_type, stage, status, stage_progress)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, projectQuery,
			prov.Project.Code,
			prov.Project.Name,
			prov.Project.ProductType,
			prov.Project.Stage,
			prov.Project.Status,
			prov.Project.StageProgress,
		).Scan(&prov.Project.ID, &prov.Project.CreatedAt, &prov.Project.UpdatedAt)
		if err != nil {
			return err
		}

		budgetQuery := `
			INSERT INTO project_budgets (project_id, total_budget, monthly_budget, spent_amount,
			                             fee_nsqc, fee_design, fee_media, fee_kol, fee_other)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`
		prov.Budget.ProjectID = prov.Project.ID
		err = tx.QueryRow(ctx, budgetQuery,
			prov.Budget.ProjectID,
			prov.Budget.TotalBudget,
			prov.Budget.MonthlyBudget,
			prov.Budget.SpentAmount,
			prov.Budget.FeeNSQC,
			prov.Budget.FeeDesign,
			prov.Budget.FeeMedia,
			prov.Budget.FeeKOL,
			prov.Budget.FeeOther,
		).Scan(&prov.Budget.ID, &prov.Budget.CreatedAt, &prov.Budget.UpdatedAt)
		if err != nil {
			return err
		}

		teamQuery := `
			INSERT INTO project_team_members (project_id, user_id, role, is_primary)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		for _, member := range prov.Team {
			member.ProjectID = prov.Project.ID
			err := tx.QueryRow(ctx, teamQuery,
				member.ProjectID,
				member.UserID,
				member.Role,
				member.IsPrimary,
			).Scan(&member.ID, &member.CreatedAt)
			if err != nil {
				return err
			}
		}

		phaseQuery := `
			INSERT INTO project_phases (project_id, phase_type, weight, progress, order_index)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		itemQuery := `
			INSERT INTO project_phase_items (phase_id, name, weight, is_complete, order_index)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		for _, pp := range prov.Phases {
			pp.Phase.ProjectID = prov.Project.ID
			err := tx.QueryRow(ctx, phaseQuery,
				pp.Phase.ProjectID,
				pp.Phase.PhaseType,
				pp.Phase.Weight,
				pp.Phase.Progress,
				pp.Phase.OrderIndex,
			).Scan(&pp.Phase.ID, &pp.Phase.CreatedAt, &pp.Phase.UpdatedAt)
			if err != nil {
				return err
			}

			for _, item := range pp.Items {
				item.PhaseID = pp.Phase.ID
				err := tx.QueryRow(ctx, itemQuery,
					item.PhaseID,
					item.Name,
					item.Weight,
					item.IsComplete,
					item.OrderIndex,
				).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
				if err != nil {
					return err
				}
			}
		}

		briefQuery := `
			INSERT INTO strategic_briefs (project_id, pipeline_id, status, completion_pct)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		prov.Brief.ProjectID = prov.Project.ID
		prov.Brief.PipelineID = prov.PipelineID
		err = tx.QueryRow(ctx, briefQuery,
			prov.Brief.ProjectID,
			prov.Brief.PipelineID,
			prov.Brief.Status,
			prov.Brief.CompletionPct,
		).Scan(&prov.Brief.ID, &prov.Brief.CreatedAt, &prov.Brief.UpdatedAt)
		if err != nil {
			return err
		}

		sectionQuery := `
			INSERT INTO brief_sections (brief_id, section_number, title, is_complete)
			VALUES ($1, $2, $3, $4)
			RETURNING id, updated_at
		`
		for _, section := range prov.Sections {
			section.BriefID = prov.Brief.ID
			err := tx.QueryRow(ctx, sectionQuery,
				section.BriefID,
				section.SectionNumber,
				section.Title,
				section.IsComplete,
			).Scan(&section.ID, &section.UpdatedAt)
			if err != nil {
				return err
			}
		}

		// Stamp the pipeline last. The decision guard in the WHERE clause
		// makes a concurrent double-accept fail the whole transaction.
		pipelineQuery := `
			UPDATE pipelines
			SET decision      = $2,
			    stage         = $3,
			    project_id    = $4,
			    decision_date = $5,
			    decision_note = $6,
			    decided_by    = $7,
			    updated_at    = NOW()
			WHERE id = $1
			  AND decision = $8
			RETURNING id
		`
		var pipelineID string
		err = tx.QueryRow(ctx, pipelineQuery,
			prov.PipelineID,
			DecisionAccepted,
			StageWon,
			prov.Project.ID,
			prov.DecisionDate,
			prov.DecisionNote,
			prov.DecidedBy,
			DecisionPending,
		).Scan(&pipelineID)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeAlreadyDecided, "pipeline has already been decided")
		}
		return err
	})

	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return errors.Wrap(err, errors.ErrCodeConflict, "project code already exists")
	}
	if errors.CodeOf(err) != errors.ErrCodeInternal {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeInternal, "failed to provision project")
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, code, name, product_type, stage, status, stage_progress,
		       created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	p := &Project{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.ProductType,
		&p.Stage,
		&p.Status,
		&p.StageProgress,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("project", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get project")
	}
	return p, nil
}

// Exists reports whether a project row exists.
func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check project existence")
	}
	return exists, nil
}

// GetBudget retrieves the 1:1 budget record for a project.
func (r *ProjectRepository) GetBudget(ctx context.Context, projectID string) (*ProjectBudget, error) {
	query := `
		SELECT id, project_id, total_budget, monthly_budget, spent_amount,
		       fee_nsqc, fee_design, fee_media, fee_kol, fee_other,
		       created_at, updated_at
		FROM project_budgets
		WHERE project_id = $1
	`

	b := &ProjectBudget{}
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&b.ID,
		&b.ProjectID,
		&b.TotalBudget,
		&b.MonthlyBudget,
		&b.SpentAmount,
		&b.FeeNSQC,
		&b.FeeDesign,
		&b.FeeMedia,
		&b.FeeKOL,
		&b.FeeOther,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("project_budget", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get project budget")
	}
	return b, nil
}

// UpdateSpentAmount writes the recomputed spent amount. This is the only
// write path for the derived field.
func (r *ProjectRepository) UpdateSpentAmount(ctx context.Context, projectID string, amount int64) error {
	query := `
		UPDATE project_budgets
		SET spent_amount = $2,
		    updated_at   = NOW()
		WHERE project_id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, projectID, amount).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("project_budget", projectID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update spent amount")
	}
	return nil
}

// UpdateStageProgress writes the recomputed project-level progress.
func (r *ProjectRepository) UpdateStageProgress(ctx context.Context, projectID string, progress int) error {
	query := `
		UPDATE projects
		SET stage_progress = $2,
		    updated_at     = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, projectID, progress).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("project", projectID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update stage progress")
	}
	return nil
}

// ListTeam returns the team members of a project.
func (r *ProjectRepository) ListTeam(ctx context.Context, projectID string) ([]*ProjectTeamMember, error) {
	query := `
		SELECT id, project_id, user_id, role, is_primary, created_at
		FROM project_team_members
		WHERE project_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list project team")
	}
	defer rows.Close()

	members := make([]*ProjectTeamMember, 0)
	for rows.Next() {
		m := &ProjectTeamMember{}
		err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.IsPrimary, &m.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan team member")
		}
		members = append(members, m)
	}
	return members, nil
}

// ListPMUserIDs returns the user IDs holding the PM role on a project.
func (r *ProjectRepository) ListPMUserIDs(ctx context.Context, projectID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM project_team_members
		WHERE project_id = $1 AND role = $2
	`

	rows, err := r.db.Query(ctx, query, projectID, RolePM)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list project PMs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan PM user id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package repository

import (
	"context"

	"github.com/pesio-ai/be-agency-projects/internal/platform/database"
	"github.com/pesio-ai/be-agency-projects/internal/platform/errors"
)

// UserRepository resolves user IDs by platform role. Roles are synced into
// the local user_roles table by the identity service; this repository only
// reads them.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUsersWithRole returns the IDs of active users holding the given role.
func (r *UserRepository) GetUsersWithRole(ctx context.Context, role string) ([]string, error) {
	query := `
		SELECT user_id
		FROM user_roles
		WHERE role = $1 AND active = TRUE
		ORDER BY user_id
	`

	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list users by role")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan user role row")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package postgres

import (
	"context"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/jackc/pgx/v5"
)

const roleColumns = `id, name, description, permissions, is_default, is_active, created_at, updated_at`

// CreateRole inserts a new role.
func (s *Store) CreateRole(ctx context.Context, role models.Role) (models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	permissions := role.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	const query = `
		INSERT INTO roles (name, description, permissions, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + roleColumns
	row := s.pool.QueryRow(ctx, query, role.Name, role.Description, permissions, role.IsDefault, role.IsActive)
	return scanRole(row)
}

// FindRoleByID fetches a role by primary key.
func (s *Store) FindRoleByID(ctx context.Context, id int64) (models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// FindRoleByName fetches a role by its unique name.
func (s *Store) FindRoleByName(ctx context.Context, name string) (models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// ListRoles returns roles ordered by creation, newest first.
func (s *Store) ListRoles(ctx context.Context, activeOnly bool) ([]models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE ($1 = FALSE OR is_active) ORDER BY created_at DESC, id DESC`, activeOnly)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, mapError(rows.Err())
}

// UpdateRole applies the non-nil fields of update. Renaming a role also renames it on its users.
func (s *Store) UpdateRole(ctx context.Context, id int64, update models.RoleUpdate) (models.Role, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var permissions any
	if update.Permissions != nil {
		permissions = *update.Permissions
	}

	var role models.Role
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const query = `
			UPDATE roles SET
				name = COALESCE($2, name),
				description = COALESCE($3, description),
				permissions = COALESCE($4::text[], permissions),
				is_active = COALESCE($5, is_active),
				updated_at = NOW()
			WHERE id = $1
			RETURNING ` + roleColumns
		var err error
		role, err = scanRole(tx.QueryRow(ctx, query, id, update.Name, update.Description, permissions, update.IsActive))
		if err != nil {
			return err
		}
		if update.Name != nil {
			if _, err := tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE role_id = $1`, id, role.Name); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Role{}, mapError(err)
	}
	return role, nil
}

// DeleteRole removes a role. Roles still assigned to users cannot be deleted.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execOne(ctx, s.pool, `DELETE FROM roles WHERE id = $1`, id)
}

func scanRole(row pgx.Row) (models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.IsDefault,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return models.Role{}, mapError(err)
	}
	return role, nil
}

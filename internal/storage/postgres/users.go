package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, username, email, password_hash, role_id, role, is_active, last_login, created_at, updated_at`

// CreateUser inserts a new user row. The role name is denormalized from role_id.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const query = `
		INSERT INTO users (name, username, email, password_hash, role_id, role, is_active)
		SELECT $1, $2, $3, $4, r.id, r.name, $6
		FROM roles r
		WHERE r.id = $5
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, user.Name, user.Username, user.Email, user.PasswordHash, user.RoleID, user.IsActive)
	return scanUser(row)
}

// FindUserByID fetches a user by primary key.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindUserByEmail fetches a user by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindUserByEmailOrUsername fetches the first user matching either identifier.
func (s *Store) FindUserByEmailOrUsername(ctx context.Context, email, username string) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $2 ORDER BY (email = $1) DESC LIMIT 1`
	row := s.pool.QueryRow(ctx, query, email, username)
	return scanUser(row)
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, mapError(rows.Err())
}

// UpdateUser applies the non-nil fields of update and returns the stored row.
func (s *Store) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const query = `
		UPDATE users SET
			name = COALESCE($2, name),
			username = COALESCE($3, username),
			email = COALESCE($4, email),
			role_id = COALESCE($5, role_id),
			role = COALESCE((SELECT r.name FROM roles r WHERE r.id = $5), role),
			is_active = COALESCE($6, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query, id, update.Name, update.Username, update.Email, update.RoleID, update.IsActive)
	return scanUser(row)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execOne(ctx, s.pool, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// TouchLastLogin records a successful login time.
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execOne(ctx, s.pool, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

// DeleteUser removes a user and, through the foreign key, its reset tokens.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return execOne(ctx, s.pool, `DELETE FROM users WHERE id = $1`, id)
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Username, &user.Email, &user.PasswordHash, &user.RoleID,
		&user.Role, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, mapError(err)
	}
	return user, nil
}

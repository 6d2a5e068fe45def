package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
	"github.com/jackc/pgx/v5"
)

const resetTokenColumns = `id, user_id, token, expires_at, is_used, used_at, ip_address, user_agent, created_at`

// CreateResetToken inserts a reset token while holding a lock on the owning user row,
// so two concurrent requests cannot both pass the outstanding-token check.
func (s *Store) CreateResetToken(ctx context.Context, token models.PasswordResetToken, since time.Time) (models.PasswordResetToken, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var created models.PasswordResetToken
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var userID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, token.UserID).Scan(&userID); err != nil {
			return mapError(err)
		}

		var outstanding bool
		const recent = `
			SELECT EXISTS (
				SELECT 1 FROM password_reset_tokens
				WHERE user_id = $1 AND is_used = FALSE AND created_at >= $2 AND expires_at > $3
			)`
		if err := tx.QueryRow(ctx, recent, token.UserID, since, token.CreatedAt).Scan(&outstanding); err != nil {
			return mapError(err)
		}
		if outstanding {
			return storage.ErrRecentResetToken
		}

		const insert = `
			INSERT INTO password_reset_tokens (user_id, token, expires_at, ip_address, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + resetTokenColumns
		var err error
		created, err = scanResetToken(tx.QueryRow(ctx, insert, token.UserID, token.Token, token.ExpiresAt,
			token.IPAddress, token.UserAgent, token.CreatedAt))
		return err
	})
	if err != nil {
		return models.PasswordResetToken{}, mapError(err)
	}
	return created, nil
}

// FindResetToken fetches a ledger entry by its token string regardless of state.
func (s *Store) FindResetToken(ctx context.Context, token string) (models.PasswordResetToken, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, `SELECT `+resetTokenColumns+` FROM password_reset_tokens WHERE token = $1`, token)
	return scanResetToken(row)
}

// ConsumeResetToken flips the token to used and writes the new password hash in one transaction.
func (s *Store) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var userID int64
		const consume = `
			UPDATE password_reset_tokens SET is_used = TRUE, used_at = $2
			WHERE token = $1 AND is_used = FALSE AND expires_at > $2
			RETURNING user_id`
		if err := tx.QueryRow(ctx, consume, token, now).Scan(&userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrTokenNotActionable
			}
			return mapError(err)
		}
		return execOne(ctx, tx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, passwordHash, now)
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteExpiredResetTokens purges ledger rows that expired before the given time.
func (s *Store) DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanResetToken(row pgx.Row) (models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.IsUsed, &t.UsedAt, &t.IPAddress,
		&t.UserAgent, &t.CreatedAt); err != nil {
		return models.PasswordResetToken{}, mapError(err)
	}
	return t, nil
}

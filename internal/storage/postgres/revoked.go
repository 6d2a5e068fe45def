package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
)

// RevokeToken records a session token id. Revoking twice is not an error.
func (s *Store) RevokeToken(ctx context.Context, token models.RevokedToken) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `INSERT INTO revoked_tokens (jti, user_id, expires_at) VALUES ($1, $2, $3) ON CONFLICT (jti) DO NOTHING`,
		token.JTI, token.UserID, token.ExpiresAt)
	if err != nil {
		return mapError(err)
	}
	// prune entries whose tokens would be rejected as expired anyway
	_, err = s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, time.Now())
	return mapError(err)
}

// IsTokenRevoked reports whether jti was revoked and the revocation is still relevant at now.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var revoked bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > $2)`, jti, now).Scan(&revoked)
	return revoked, mapError(err)
}

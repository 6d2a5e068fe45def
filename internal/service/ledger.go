package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

const resetTokenBytes = 32

// ResetLedger issues and redeems single-use password reset tokens.
type ResetLedger struct {
	store    storage.ResetTokenStore
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewResetLedger creates a ledger whose tokens live for ttl. A user may hold only one
// unused token younger than interval.
func NewResetLedger(store storage.ResetTokenStore, ttl, interval time.Duration, now func() time.Time) *ResetLedger {
	if now == nil {
		now = time.Now
	}
	return &ResetLedger{store: store, ttl: ttl, interval: interval, now: now}
}

// Issue records a fresh token for the user and returns its opaque value.
func (l *ResetLedger) Issue(ctx context.Context, userID int64, meta models.RequestMeta) (string, error) {
	value, err := randomToken()
	if err != nil {
		return "", internal("failed to issue reset token", err)
	}
	now := l.now()
	_, err = l.store.CreateResetToken(ctx, models.PasswordResetToken{
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(l.ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}, now.Add(-l.interval))
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, storage.ErrRecentResetToken):
		return "", ErrResetRateLimited
	default:
		return "", internal("failed to issue reset token", err)
	}
}

// Verify returns the ledger entry when the token exists, is unused and has not expired.
func (l *ResetLedger) Verify(ctx context.Context, token string) (models.PasswordResetToken, error) {
	if token == "" {
		return models.PasswordResetToken{}, ErrInvalidResetToken
	}
	entry, err := l.store.FindResetToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PasswordResetToken{}, ErrInvalidResetToken
	}
	if err != nil {
		return models.PasswordResetToken{}, internal("failed to verify reset token", err)
	}
	if !entry.Actionable(l.now()) {
		return models.PasswordResetToken{}, ErrInvalidResetToken
	}
	return entry, nil
}

// Consume marks the token used and stores passwordHash on its owner. Only one of any
// number of concurrent callers can succeed.
func (l *ResetLedger) Consume(ctx context.Context, token, passwordHash string) error {
	err := l.store.ConsumeResetToken(ctx, token, l.now(), passwordHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrTokenNotActionable):
		return ErrInvalidResetToken
	case errors.Is(err, storage.ErrNotFound):
		return ErrUserNotFound
	default:
		return internal("failed to reset password", err)
	}
}

func randomToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

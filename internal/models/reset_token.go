package models

import "time"

// PasswordResetToken is one entry of the reset ledger.
type PasswordResetToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Actionable reports whether the token can still authorize a password change at now.
func (t PasswordResetToken) Actionable(now time.Time) bool {
	return !t.IsUsed && now.Before(t.ExpiresAt)
}

// RequestMeta describes the client that asked for a reset.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

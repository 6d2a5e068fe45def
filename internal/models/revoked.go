package models

import "time"

// RevokedToken marks a session token id as no longer accepted until ExpiresAt.
type RevokedToken struct {
	JTI       string
	UserID    int64
	ExpiresAt time.Time
}

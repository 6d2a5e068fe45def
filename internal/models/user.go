package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	RoleID       int64      `json:"role_id"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserUpdate lists the mutable profile fields. Nil fields are left untouched.
type UserUpdate struct {
	Name     *string
	Username *string
	Email    *string
	RoleID   *int64
	IsActive *bool
}

// Empty reports whether the update carries no changes.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Username == nil && u.Email == nil && u.RoleID == nil && u.IsActive == nil
}

package models

import "time"

const (
	AdminRole  = "admin"
	UserRole   = "user"
	EditorRole = "editor"
	ViewerRole = "viewer"
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions *[]string
	IsActive    *bool
}

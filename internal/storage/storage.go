package storage

import (
	"context"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
)

// UserStore captures persistence operations for user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id int64) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	// FindUserByEmailOrUsername returns the first user whose email or username matches.
	FindUserByEmailOrUsername(ctx context.Context, email, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	DeleteUser(ctx context.Context, id int64) error
}

// RoleStore captures persistence operations for roles.
type RoleStore interface {
	CreateRole(ctx context.Context, role models.Role) (models.Role, error)
	FindRoleByID(ctx context.Context, id int64) (models.Role, error)
	FindRoleByName(ctx context.Context, name string) (models.Role, error)
	ListRoles(ctx context.Context, activeOnly bool) ([]models.Role, error)
	UpdateRole(ctx context.Context, id int64, update models.RoleUpdate) (models.Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// ResetTokenStore is the persistence side of the password reset ledger.
type ResetTokenStore interface {
	// CreateResetToken inserts the token unless the owner already holds an unused token
	// created at or after since that has not expired at token.CreatedAt. In that case it
	// returns ErrRecentResetToken and writes nothing.
	CreateResetToken(ctx context.Context, token models.PasswordResetToken, since time.Time) (models.PasswordResetToken, error)
	FindResetToken(ctx context.Context, token string) (models.PasswordResetToken, error)
	// ConsumeResetToken marks the token used and stores passwordHash on its owner in one
	// transaction. It returns ErrTokenNotActionable when the token is missing, used, or
	// expired at now.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) error
	DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int64, error)
}

// ContactStore persists contact form submissions.
type ContactStore interface {
	CreateContact(ctx context.Context, contact models.Contact) (models.Contact, error)
	HasRecentContact(ctx context.Context, email string, since time.Time) (bool, error)
}

// RevocationStore keeps the ids of session tokens invalidated before their expiry.
type RevocationStore interface {
	RevokeToken(ctx context.Context, token models.RevokedToken) error
	IsTokenRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
}

// Store bundles every persistence concern the server needs.
type Store interface {
	UserStore
	RoleStore
	ResetTokenStore
	ContactStore
	RevocationStore
	Ping(ctx context.Context) error
	Close()
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

// ForgotPasswordMessage is returned for every forgot-password request that is not
// rate limited, whether or not the address belongs to an account.
const ForgotPasswordMessage = "If an account exists with this email, you will receive a reset link shortly."

// Notifier sends the transactional emails triggered by account activity.
type Notifier interface {
	Welcome(ctx context.Context, user models.User) error
	PasswordReset(ctx context.Context, user models.User, token string) error
	PasswordChanged(ctx context.Context, user models.User) error
	ContactReceived(ctx context.Context, contact models.Contact) error
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users    storage.UserStore
	Roles    storage.RoleStore
	Revoked  storage.RevocationStore
	Ledger   *ResetLedger
	Tokens   *auth.TokenManager
	Hasher   *auth.PasswordHasher
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
	// Revocation makes Logout record the token id so it is rejected until it expires.
	Revocation bool
}

// AuthService implements registration, login and password management.
type AuthService struct {
	AuthDeps
}

func NewAuthService(deps AuthDeps) *AuthService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &AuthService{AuthDeps: deps}
}

type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
	RoleName string
}

// Session is an authenticated user together with a freshly issued token.
type Session struct {
	User      models.User
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.RoleName = strings.TrimSpace(in.RoleName)
	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return Session{}, badRequest("all fields are required")
	}
	var errs fieldErrors
	errs.length("name", in.Name, 2, 100)
	errs.length("username", in.Username, 3, 50)
	errs.email(in.Email)
	if err := errs.err(); err != nil {
		return Session{}, err
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return Session{}, badRequest(err.Error())
	}

	if existing, err := s.Users.FindUserByEmailOrUsername(ctx, in.Email, in.Username); err == nil {
		field := "username"
		if existing.Email == in.Email {
			field = "email"
		}
		return Session{}, &Error{Kind: KindConflict, Message: "user with this " + field + " already exists"}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Session{}, internal("registration failed", err)
	}

	role, err := s.resolveRole(ctx, in.RoleName)
	if err != nil {
		return Session{}, err
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return Session{}, internal("registration failed", err)
	}
	user, err := s.Users.CreateUser(ctx, models.User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
		Role:         role.Name,
		IsActive:     true,
	})
	if err != nil {
		return Session{}, fromStore(err, "user", "registration")
	}

	if err := s.Notifier.Welcome(ctx, user); err != nil {
		s.Logger.WarnContext(ctx, "welcome email failed", "user_id", user.ID, "error", err)
	}
	return s.session(user)
}

func (s *AuthService) resolveRole(ctx context.Context, name string) (models.Role, error) {
	if name == "" {
		name = models.UserRole
	}
	role, err := s.Roles.FindRoleByName(ctx, name)
	if err == nil && role.IsActive {
		return role, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Role{}, internal("registration failed", err)
	}
	roles, err := s.Roles.ListRoles(ctx, true)
	if err != nil {
		return models.Role{}, internal("registration failed", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return models.Role{}, badRequest("invalid role. Available roles: " + strings.Join(names, ", "))
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, badRequest("email and password are required")
	}
	user, err := s.Users.FindUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		s.Hasher.SpendCompare(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, internal("login failed", err)
	}
	if !s.Hasher.Matches(user.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, ErrAccountDisabled
	}

	now := s.Now()
	if err := s.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.Logger.WarnContext(ctx, "update last login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}
	return s.session(user)
}

func (s *AuthService) session(user models.User) (Session, error) {
	token, expiresAt, err := s.Tokens.Generate(user)
	if err != nil {
		return Session{}, internal("failed to issue token", err)
	}
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout ends the session. The client is expected to discard its token; the token id
// is only recorded server side when revocation is enabled.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if !s.Revocation || claims == nil {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	err := s.Revoked.RevokeToken(ctx, models.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return internal("logout failed", err)
	}
	return nil
}

// IsRevoked reports whether the token id was revoked by a logout.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !s.Revocation {
		return false, nil
	}
	revoked, err := s.Revoked.IsTokenRevoked(ctx, jti, s.Now())
	if err != nil {
		return false, internal("token check failed", err)
	}
	return revoked, nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.Users.FindUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fromStore(err, "user", "fetch user")
	}
	return user, nil
}

type ProfileInput struct {
	Name     *string
	Username *string
	Email    *string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (models.User, error) {
	var update models.UserUpdate
	var errs fieldErrors
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		errs.length("name", name, 2, 100)
		update.Name = &name
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		errs.length("username", username, 3, 50)
		update.Username = &username
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		errs.email(email)
		update.Email = &email
	}
	if err := errs.err(); err != nil {
		return models.User{}, err
	}
	if update.Empty() {
		return s.Me(ctx, userID)
	}
	user, err := s.Users.UpdateUser(ctx, userID, update)
	if err != nil {
		return models.User{}, fromStore(err, "user", "profile update")
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return badRequest("all password fields are required")
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := auth.ValidatePasswordStrength(next); err != nil {
		return badRequest(err.Error())
	}
	user, err := s.Users.FindUserByID(ctx, userID)
	if err != nil {
		return fromStore(err, "user", "change password")
	}
	if !s.Hasher.Matches(user.PasswordHash, current) {
		return ErrWrongPassword
	}
	if current == next {
		return ErrPasswordUnchanged
	}
	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return internal("change password failed", err)
	}
	if err := s.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fromStore(err, "user", "change password")
	}
	if err := s.Notifier.PasswordChanged(ctx, user); err != nil {
		s.Logger.WarnContext(ctx, "password changed email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ForgotPassword issues a reset token and mails it when email belongs to an account.
// Unknown addresses succeed silently so callers cannot probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta models.RequestMeta) error {
	email = normalizeEmail(email)
	if email == "" {
		return badRequest("email is required")
	}
	user, err := s.Users.FindUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internal("forgot password failed", err)
	}
	if !user.IsActive {
		s.Logger.InfoContext(ctx, "reset requested for deactivated account", "user_id", user.ID)
		return nil
	}
	token, err := s.Ledger.Issue(ctx, user.ID, meta)
	if err != nil {
		return err
	}
	if err := s.Notifier.PasswordReset(ctx, user, token); err != nil {
		s.Logger.ErrorContext(ctx, "password reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *AuthService) VerifyResetToken(ctx context.Context, token string) error {
	_, err := s.Ledger.Verify(ctx, token)
	return err
}

func (s *AuthService) ResetPassword(ctx context.Context, token, next, confirm string) error {
	if token == "" || next == "" || confirm == "" {
		return badRequest("token and new password are required")
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := auth.ValidatePasswordStrength(next); err != nil {
		return badRequest(err.Error())
	}
	entry, err := s.Ledger.Verify(ctx, token)
	if err != nil {
		return err
	}
	user, err := s.Users.FindUserByID(ctx, entry.UserID)
	if err != nil {
		return fromStore(err, "user", "reset password")
	}
	if s.Hasher.Matches(user.PasswordHash, next) {
		return ErrPasswordUnchanged
	}
	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return internal("reset password failed", err)
	}
	if err := s.Ledger.Consume(ctx, token, hash); err != nil {
		return err
	}
	if err := s.Notifier.PasswordChanged(ctx, user); err != nil {
		s.Logger.WarnContext(ctx, "password changed email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

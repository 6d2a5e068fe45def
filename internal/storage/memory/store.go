// Package memory is an in-process storage.Store used by tests and local runs without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]models.User
	roles    map[int64]models.Role
	tokens   map[string]models.PasswordResetToken
	contacts []models.Contact
	revoked  map[string]models.RevokedToken
}

// New returns a store seeded with the default roles.
func New() *Store {
	s := &Store{
		users:   make(map[int64]models.User),
		roles:   make(map[int64]models.Role),
		tokens:  make(map[string]models.PasswordResetToken),
		revoked: make(map[string]models.RevokedToken),
	}
	now := time.Now()
	seed := []models.Role{
		{Name: models.AdminRole, Description: "System administrator with full access", IsDefault: true},
		{Name: models.UserRole, Description: "Regular user", IsDefault: true},
		{Name: models.EditorRole, Description: "Content editor"},
		{Name: models.ViewerRole, Description: "Read-only access"},
	}
	for _, r := range seed {
		s.nextID++
		r.ID = s.nextID
		r.IsActive = true
		r.Permissions = []string{}
		r.CreatedAt, r.UpdatedAt = now, now
		s.roles[r.ID] = r
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserUnique(0, user.Email, user.Username); err != nil {
		return models.User{}, err
	}
	role, ok := s.roles[user.RoleID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	now := time.Now()
	user.ID = s.id()
	user.Role = role.Name
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) checkUserUnique(selfID int64, email, username string) error {
	for _, u := range s.users {
		if u.ID == selfID {
			continue
		}
		if u.Email == email {
			return &storage.DuplicateKeyError{Field: "email"}
		}
		if u.Username == username {
			return &storage.DuplicateKeyError{Field: "username"}
		}
	}
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindUserByEmailOrUsername(_ context.Context, email, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var byUsername *models.User
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
		if u.Username == username {
			u := u
			byUsername = &u
		}
	}
	if byUsername != nil {
		return *byUsername, nil
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, update models.UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Username != nil {
		u.Username = *update.Username
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.RoleID != nil {
		role, ok := s.roles[*update.RoleID]
		if !ok {
			return models.User{}, &storage.ValidationError{Messages: []string{"referenced record does not exist or is still in use"}}
		}
		u.RoleID, u.Role = role.ID, role.Name
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	if err := s.checkUserUnique(id, u.Email, u.Username); err != nil {
		return models.User{}, err
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return u, nil
}

func (s *Store) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

func (s *Store) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastLogin = &at
	s.users[id] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for k, t := range s.tokens {
		if t.UserID == id {
			delete(s.tokens, k)
		}
	}
	return nil
}

func (s *Store) CreateRole(_ context.Context, role models.Role) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == role.Name {
			return models.Role{}, &storage.DuplicateKeyError{Field: "name"}
		}
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	now := time.Now()
	role.ID = s.id()
	role.CreatedAt, role.UpdatedAt = now, now
	s.roles[role.ID] = role
	return role, nil
}

func (s *Store) FindRoleByID(_ context.Context, id int64) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return models.Role{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) FindRoleByName(_ context.Context, name string) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return models.Role{}, storage.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context, activeOnly bool) ([]models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateRole(_ context.Context, id int64, update models.RoleUpdate) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return models.Role{}, storage.ErrNotFound
	}
	if update.Name != nil {
		for _, other := range s.roles {
			if other.ID != id && other.Name == *update.Name {
				return models.Role{}, &storage.DuplicateKeyError{Field: "name"}
			}
		}
		r.Name = *update.Name
		for uid, u := range s.users {
			if u.RoleID == id {
				u.Role = r.Name
				s.users[uid] = u
			}
		}
	}
	if update.Description != nil {
		r.Description = *update.Description
	}
	if update.Permissions != nil {
		r.Permissions = *update.Permissions
	}
	if update.IsActive != nil {
		r.IsActive = *update.IsActive
	}
	r.UpdatedAt = time.Now()
	s.roles[id] = r
	return r, nil
}

func (s *Store) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return storage.ErrNotFound
	}
	for _, u := range s.users {
		if u.RoleID == id {
			return &storage.ValidationError{Messages: []string{"referenced record does not exist or is still in use"}}
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *Store) CreateResetToken(_ context.Context, token models.PasswordResetToken, since time.Time) (models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[token.UserID]; !ok {
		return models.PasswordResetToken{}, storage.ErrNotFound
	}
	for _, t := range s.tokens {
		if t.UserID == token.UserID && !t.IsUsed && !t.CreatedAt.Before(since) && t.ExpiresAt.After(token.CreatedAt) {
			return models.PasswordResetToken{}, storage.ErrRecentResetToken
		}
	}
	if _, ok := s.tokens[token.Token]; ok {
		return models.PasswordResetToken{}, &storage.DuplicateKeyError{Field: "token"}
	}
	token.ID = s.id()
	s.tokens[token.Token] = token
	return token, nil
}

func (s *Store) FindResetToken(_ context.Context, token string) (models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return models.PasswordResetToken{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || !t.Actionable(now) {
		return storage.ErrTokenNotActionable
	}
	u, ok := s.users[t.UserID]
	if !ok {
		return storage.ErrNotFound
	}
	t.IsUsed = true
	t.UsedAt = &now
	s.tokens[token] = t
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	s.users[u.ID] = u
	return nil
}

func (s *Store) DeleteExpiredResetTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, t := range s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateContact(_ context.Context, c models.Contact) (models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	c.Email = strings.ToLower(c.Email)
	s.contacts = append(s.contacts, c)
	return c, nil
}

func (s *Store) HasRecentContact(_ context.Context, email string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Email == email && !c.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RevokeToken(_ context.Context, token models.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token.JTI] = token
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.revoked[jti]
	return ok && t.ExpiresAt.After(now), nil
}

// ResetTokensFor returns the ledger entries of a user. Tests use it to read issued tokens.
func (s *Store) ResetTokensFor(userID int64) []models.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PasswordResetToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

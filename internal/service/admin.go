package service

import (
	"context"
	"strings"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

// AdminService backs the user and role management endpoints.
type AdminService struct {
	users  storage.UserStore
	roles  storage.RoleStore
	hasher *auth.PasswordHasher
}

func NewAdminService(users storage.UserStore, roles storage.RoleStore, hasher *auth.PasswordHasher) *AdminService {
	return &AdminService{users: users, roles: roles, hasher: hasher}
}

type CreateUserInput struct {
	Name     string
	Username string
	Email    string
	Password string
	RoleID   int64
}

func (s *AdminService) CreateUser(ctx context.Context, in CreateUserInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" || in.RoleID == 0 {
		return models.User{}, badRequest("all fields are required")
	}
	var errs fieldErrors
	errs.length("name", in.Name, 2, 100)
	errs.length("username", in.Username, 3, 50)
	errs.email(in.Email)
	if err := errs.err(); err != nil {
		return models.User{}, err
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return models.User{}, badRequest(err.Error())
	}

	role, err := s.roles.FindRoleByID(ctx, in.RoleID)
	if err != nil {
		return models.User{}, fromStore(err, "role", "create user")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, internal("create user failed", err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
		Role:         role.Name,
		IsActive:     true,
	})
	if err != nil {
		return models.User{}, fromStore(err, "user", "create user")
	}
	return user, nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, internal("list users failed", err)
	}
	return users, nil
}

func (s *AdminService) GetUser(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return models.User{}, fromStore(err, "user", "fetch user")
	}
	return user, nil
}

// UpdateUser applies a partial update. Passwords cannot be changed here.
func (s *AdminService) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (models.User, error) {
	var errs fieldErrors
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		errs.length("name", name, 2, 100)
		update.Name = &name
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		errs.length("username", username, 3, 50)
		update.Username = &username
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		errs.email(email)
		update.Email = &email
	}
	if err := errs.err(); err != nil {
		return models.User{}, err
	}
	if update.RoleID != nil {
		if _, err := s.roles.FindRoleByID(ctx, *update.RoleID); err != nil {
			return models.User{}, fromStore(err, "role", "update user")
		}
	}
	if update.Empty() {
		return s.GetUser(ctx, id)
	}
	user, err := s.users.UpdateUser(ctx, id, update)
	if err != nil {
		return models.User{}, fromStore(err, "user", "update user")
	}
	return user, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	return fromStore(s.users.DeleteUser(ctx, id), "user", "delete user")
}

type RoleInput struct {
	Name        *string
	Description *string
	Permissions *[]string
	IsActive    *bool
}

func (s *AdminService) CreateRole(ctx context.Context, in RoleInput) (models.Role, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return models.Role{}, badRequest("role name is required")
	}
	role := models.Role{
		Name:     strings.ToLower(strings.TrimSpace(*in.Name)),
		IsActive: true,
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.Permissions != nil {
		role.Permissions = *in.Permissions
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}
	created, err := s.roles.CreateRole(ctx, role)
	if err != nil {
		return models.Role{}, fromStore(err, "role", "create role")
	}
	return created, nil
}

func (s *AdminService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.roles.ListRoles(ctx, false)
	if err != nil {
		return nil, internal("list roles failed", err)
	}
	return roles, nil
}

func (s *AdminService) GetRole(ctx context.Context, id int64) (models.Role, error) {
	role, err := s.roles.FindRoleByID(ctx, id)
	if err != nil {
		return models.Role{}, fromStore(err, "role", "fetch role")
	}
	return role, nil
}

func (s *AdminService) UpdateRole(ctx context.Context, id int64, in RoleInput) (models.Role, error) {
	update := models.RoleUpdate{
		Description: in.Description,
		Permissions: in.Permissions,
		IsActive:    in.IsActive,
	}
	if in.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*in.Name))
		if name == "" {
			return models.Role{}, badRequest("role name cannot be empty")
		}
		update.Name = &name
	}
	role, err := s.roles.UpdateRole(ctx, id, update)
	if err != nil {
		return models.Role{}, fromStore(err, "role", "update role")
	}
	return role, nil
}

func (s *AdminService) DeleteRole(ctx context.Context, id int64) error {
	return fromStore(s.roles.DeleteRole(ctx, id), "role", "delete role")
}

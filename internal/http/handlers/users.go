package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hongminglow/istc-be/internal/http/respond"
	"github.com/hongminglow/istc-be/internal/middleware"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/models/dto"
	"github.com/hongminglow/istc-be/internal/service"
)

// AdminHandler serves user and role management. Every route requires the admin role.
type AdminHandler struct {
	admin *service.AdminService
	log   *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, log *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, log: log}
}

func (h *AdminHandler) Register(mux *http.ServeMux, guards Guards) {
	admin := func(f http.HandlerFunc) http.Handler {
		return middleware.Chain(f, guards.Authenticate, guards.Admin)
	}

	mux.Handle("POST /api/v1/users", admin(h.handleCreateUser))
	mux.Handle("GET /api/v1/users", admin(h.handleListUsers))
	mux.Handle("GET /api/v1/users/{id}", admin(h.handleGetUser))
	mux.Handle("PUT /api/v1/users/{id}", admin(h.handleUpdateUser))
	mux.Handle("DELETE /api/v1/users/{id}", admin(h.handleDeleteUser))

	mux.Handle("POST /api/v1/roles", admin(h.handleCreateRole))
	mux.Handle("GET /api/v1/roles", admin(h.handleListRoles))
	mux.Handle("GET /api/v1/roles/{id}", admin(h.handleGetRole))
	mux.Handle("PUT /api/v1/roles/{id}", admin(h.handleUpdateRole))
	mux.Handle("DELETE /api/v1/roles/{id}", admin(h.handleDeleteRole))
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.admin.CreateUser(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "User created successfully", user)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "OK", users)
}

func (h *AdminHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "OK", user)
}

func (h *AdminHandler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// req.Password is ignored; passwords change through the auth endpoints only.
	user, err := h.admin.UpdateUser(r.Context(), id, models.UserUpdate{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		RoleID:   req.RoleID,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "User updated successfully", user)
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "User deleted successfully", nil)
}

func roleInput(req dto.RoleRequest) service.RoleInput {
	return service.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	}
}

func (h *AdminHandler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req dto.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.admin.CreateRole(r.Context(), roleInput(req))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Role created successfully", role)
}

func (h *AdminHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.admin.ListRoles(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "OK", roles)
}

func (h *AdminHandler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.admin.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "OK", role)
}

func (h *AdminHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.admin.UpdateRole(r.Context(), id, roleInput(req))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Role updated successfully", role)
}

func (h *AdminHandler) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteRole(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Role deleted successfully", nil)
}

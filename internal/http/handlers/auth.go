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

// AuthHandler owns the /api/v1/auth endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	contact *service.ContactService
	log     *slog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(auth *service.AuthService, contact *service.ContactService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, contact: contact, log: log}
}

// Register attaches auth routes to the mux. public wraps every route; authed
// additionally wraps routes that need a signed-in user.
func (h *AuthHandler) Register(mux *http.ServeMux, guards Guards) {
	public := func(f http.HandlerFunc) http.Handler { return middleware.Chain(f, guards.RateLimit) }
	authed := func(f http.HandlerFunc) http.Handler {
		return middleware.Chain(f, guards.RateLimit, guards.Authenticate)
	}

	mux.Handle("POST /api/v1/auth/register", public(h.handleRegister))
	mux.Handle("POST /api/v1/auth/login", public(h.handleLogin))
	mux.Handle("POST /api/v1/auth/forgot-password", public(h.handleForgotPassword))
	mux.Handle("POST /api/v1/auth/reset-password", public(h.handleResetPassword))
	mux.Handle("GET /api/v1/auth/verify-reset-token/{token}", public(h.handleVerifyResetToken))
	mux.Handle("POST /api/v1/auth/contact", middleware.Chain(http.HandlerFunc(h.handleContact), guards.RateLimit, guards.OptionalAuth))

	mux.Handle("POST /api/v1/auth/logout", authed(h.handleLogout))
	mux.Handle("GET /api/v1/auth/me", authed(h.handleMe))
	mux.Handle("PUT /api/v1/auth/profile", authed(h.handleUpdateProfile))
	mux.Handle("POST /api/v1/auth/change-password", authed(h.handleChangePassword))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		RoleName: req.RoleName,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Registration successful", authResponse(session))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Login successful", authResponse(session))
}

func authResponse(s service.Session) dto.AuthResponse {
	return dto.AuthResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: s.User}
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	user, err := h.auth.Me(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "OK", user)
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	user, err := h.auth.UpdateProfile(r.Context(), claims.UserID, service.ProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Profile updated successfully", user)
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	if err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	meta := models.RequestMeta{IPAddress: middleware.ClientIP(r), UserAgent: r.UserAgent()}
	if err := h.auth.ForgotPassword(r.Context(), req.Email, meta); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, service.ForgotPasswordMessage, nil)
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Password reset successful. You can now login with your new password.", nil)
}

func (h *AuthHandler) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.VerifyResetToken(r.Context(), r.PathValue("token")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Token is valid", dto.VerifyResetTokenResponse{Valid: true})
}

func (h *AuthHandler) handleContact(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var userID *int64
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		userID = &claims.UserID
	}
	contact, err := h.contact.Submit(r.Context(), service.ContactInput{
		Name:     req.Name,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		Phone:    req.Phone,
		Category: req.Category,
	}, userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Thank you for contacting us. We will get back to you soon.", dto.ContactResponse{ContactID: contact.ID})
}

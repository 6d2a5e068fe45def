package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hongminglow/istc-be/internal/http/respond"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns uptime and database status, and serves the API index.
type HealthHandler struct {
	startedAt time.Time
	db        Pinger
	appName   string
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, db Pinger, appName string) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db, appName: appName}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("/", h.handleNotFound)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	database := "up"
	if err := h.db.Ping(ctx); err != nil {
		status, code, database = "degraded", http.StatusServiceUnavailable, "down"
	}
	respond.JSON(w, code, status, map[string]string{
		"status":   status,
		"database": database,
		"uptime":   time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

func (h *HealthHandler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, h.appName+" API", map[string]any{
		"version": "v1",
		"endpoints": map[string]string{
			"health": "/health",
			"auth":   "/api/v1/auth",
			"users":  "/api/v1/users",
			"roles":  "/api/v1/roles",
		},
	})
}

func (h *HealthHandler) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respond.Error(w, http.StatusNotFound, "route not found")
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/logging"
	"github.com/hongminglow/istc-be/internal/mail"
	"github.com/hongminglow/istc-be/internal/middleware"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/service"
	"github.com/hongminglow/istc-be/internal/storage/postgres"
)

// TestAuthIntegration exercises register/login/me against a live Postgres database.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, dbURL, postgres.Options{MaxConns: 4})
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	secret := mustGetEnv(t, "JWT_SECRET")
	issuer := mustGetEnv(t, "JWT_ISSUER")
	ttl := mustGetTTL(t)
	tokens := auth.NewTokenManager(secret, issuer, ttl)
	log := logging.Discard()

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	notifier := mail.NewNotifier(mail.NewLogSender(log), mail.NotifierConfig{AppName: "ISTC", FrontendURL: "http://localhost:3000", ResetTTL: 15 * time.Minute})
	authService := service.NewAuthService(service.AuthDeps{
		Users:    store,
		Roles:    store,
		Revoked:  store,
		Ledger:   service.NewResetLedger(store, 15*time.Minute, 5*time.Minute, nil),
		Tokens:   tokens,
		Hasher:   hasher,
		Notifier: notifier,
		Logger:   log,
	})
	contactService := service.NewContactService(store, notifier, 5*time.Minute, log, nil)

	passthrough := func(next http.Handler) http.Handler { return next }
	guards := Guards{
		RateLimit:    passthrough,
		Authenticate: middleware.Authenticate(tokens, authService, log),
		OptionalAuth: middleware.OptionalAuthenticate(tokens, authService, log),
		Admin:        middleware.RequireRoles(models.AdminRole),
	}
	mux := http.NewServeMux()
	NewAuthHandler(authService, contactService, log).Register(mux, guards)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	username := fmt.Sprintf("apitest_%d", time.Now().UnixNano())
	email := fmt.Sprintf("%s@example.com", username)
	password := fmt.Sprintf("Pass!%d", time.Now().UnixNano())

	registered := request(t, ts.URL, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "API Test",
		"username": username,
		"email":    email,
		"password": password,
	}, http.StatusCreated)
	if registered.User.Username != username || registered.User.Email != email {
		t.Fatalf("register mismatch: got %+v", registered.User)
	}
	if registered.User.Role != models.UserRole {
		t.Fatalf("expected default role %q, got %q", models.UserRole, registered.User.Role)
	}
	defer func() {
		if err := store.DeleteUser(ctx, registered.User.ID); err != nil {
			t.Logf("cleanup user %d: %v", registered.User.ID, err)
		}
	}()

	loggedIn := request(t, ts.URL, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	if loggedIn.User.ID != registered.User.ID {
		t.Fatalf("login returned wrong user id: want %d got %d", registered.User.ID, loggedIn.User.ID)
	}
	if strings.TrimSpace(loggedIn.Token) == "" {
		t.Fatal("login response missing token")
	}
	if loggedIn.User.LastLogin == nil {
		t.Fatal("login did not record last_login")
	}

	request(t, ts.URL, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password + "x",
	}, http.StatusUnauthorized)

	t.Logf("created user %s (id=%d) and successfully logged in", username, registered.User.ID)
}

type authPayload struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func request(t *testing.T, baseURL, method, path, token string, body any, wantStatus int) authPayload {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    authPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: want status %d got %d (%s)", method, path, wantStatus, resp.StatusCode, envelope.Message)
	}
	return envelope.Data
}

func loadDotEnv() {
	for _, p := range []string{".env", "../../../.env"} {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		t.Fatalf("%s is required", key)
	}
	return v
}

func mustGetTTL(t *testing.T) time.Duration {
	t.Helper()
	raw := strings.TrimSpace(os.Getenv("JWT_TTL_MINUTES"))
	if raw == "" {
		return 3 * time.Hour
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		t.Fatalf("invalid JWT_TTL_MINUTES %q", raw)
	}
	return time.Duration(minutes) * time.Minute
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/config"
	"github.com/hongminglow/istc-be/internal/logging"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage/memory"
)

type outbox struct {
	mu   sync.Mutex
	sent []struct{ to, subject, body string }
}

func (o *outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

func (o *outbox) last() (string, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := o.sent[len(o.sent)-1]
	return m.to, m.body
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

type testServer struct {
	t     *testing.T
	ts    *httptest.Server
	store *memory.Store
	mail  *outbox
}

func testConfig() config.Config {
	return config.Config{
		Port:                 "0",
		JWTSecret:            "test-secret",
		JWTIssuer:            "istc-test",
		JWTTTL:               time.Hour,
		ResetTokenTTL:        15 * time.Minute,
		ResetRequestInterval: 5 * time.Minute,
		ContactInterval:      5 * time.Minute,
		BcryptCost:           4,
		RateLimitRequests:    1000,
		RateLimitWindow:      15 * time.Minute,
		CORSOrigins:          []string{"*"},
		FrontendURL:          "https://istc.test",
		AppName:              "ISTC",
		AdminEmail:           "admin@istc.test",
	}
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	store := memory.New()
	box := &outbox{}
	srv := New(cfg, store, box, logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testServer{t: t, ts: ts, store: store, mail: box}
}

func (s *testServer) do(method, path, token string, body any) envelope {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(s.t, resp.StatusCode, env.Code, "envelope code mirrors status")
	return env
}

type authData struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestAliceScenario(t *testing.T) {
	s := newTestServer(t, testConfig())

	reg := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "username": "alice", "email": "alice@x.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusCreated, reg.Code)
	registered := decodeData[authData](t, reg)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "alice", registered.User.Username)

	login := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusOK, login.Code)
	token := decodeData[authData](t, login).Token
	require.NotEmpty(t, token)

	me := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, string(me.Data), `"username":"alice"`)
	assert.NotContains(t, string(me.Data), "password")
	assert.NotContains(t, string(me.Data), "$2a$")

	logout := s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, logout.Code)

	// logout is stateless: the token keeps working until it expires
	again := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestLogoutWithRevocation(t *testing.T) {
	cfg := testConfig()
	cfg.TokenRevocation = true
	s := newTestServer(t, cfg)

	reg := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "username": "alice", "email": "alice@x.com", "password": "Str0ng!Pass",
	})
	token := decodeData[authData](t, reg).Token

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/auth/me", token, nil).Code)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	s := newTestServer(t, testConfig())

	env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Bob", "username": "bob", "email": "bob@x.com", "password": "password",
	})
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Empty(t, env.Data)

	users, err := s.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestForgotPassword_ResponseIsUniform(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "username": "alice", "email": "alice@x.com", "password": "Str0ng!Pass",
	})

	known := s.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "alice@x.com"})
	unknown := s.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "ghost@x.com"})

	assert.Equal(t, known, unknown)
	assert.Equal(t, http.StatusOK, known.Code)
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Alice", "username": "alice", "email": "alice@x.com", "password": "Str0ng!Pass",
	})

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "alice@x.com"}).Code)
	to, body := s.mail.last()
	require.Equal(t, "alice@x.com", to)
	match := tokenPattern.FindStringSubmatch(body)
	require.Len(t, match, 2)
	token := match[1]

	again := s.do(http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "alice@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, again.Code)

	verify := s.do(http.MethodGet, "/api/v1/auth/verify-reset-token/"+token, "", nil)
	require.Equal(t, http.StatusOK, verify.Code)
	assert.JSONEq(t, `{"valid":true}`, string(verify.Data))

	reset := map[string]string{"token": token, "newPassword": "N3w!Password", "confirmPassword": "N3w!Password"}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/reset-password", "", reset).Code)

	second := s.do(http.MethodPost, "/api/v1/auth/reset-password", "", reset)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "invalid or expired reset token", second.Message)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "Str0ng!Pass",
	}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@x.com", "password": "N3w!Password",
	}).Code)
}

func TestContactSpamGuard(t *testing.T) {
	s := newTestServer(t, testConfig())
	msg := map[string]string{
		"name": "Carol", "email": "carol@x.com", "subject": "Courses", "message": "Tell me about the next cohort.",
	}

	first := s.do(http.MethodPost, "/api/v1/auth/contact", "", msg)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Contains(t, string(first.Data), "contactId")

	second := s.do(http.MethodPost, "/api/v1/auth/contact", "", msg)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestContactIgnoresStaleToken(t *testing.T) {
	cfg := testConfig()
	s := newTestServer(t, cfg)

	issued := time.Now().Add(-2 * cfg.JWTTTL)
	stale, _, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).
		WithClock(func() time.Time { return issued }).
		Generate(models.User{ID: 42, RoleID: 2, Role: models.UserRole, Email: "dave@x.com"})
	require.NoError(t, err)

	msg := map[string]string{
		"name": "Dave", "email": "dave@x.com", "subject": "Schedule", "message": "When does the evening class start?",
	}
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/auth/contact", stale, msg).Code)

	msg["email"] = "erin@x.com"
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/auth/contact", "not.a.token", msg).Code)
}

func TestAdminRoutesAreGated(t *testing.T) {
	s := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/users", "", nil).Code)

	user := decodeData[authData](t, s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Bob", "username": "bob", "email": "bob@x.com", "password": "Str0ng!Pass",
	}))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users", user.Token, nil).Code)

	admin := decodeData[authData](t, s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Root", "username": "root", "email": "root@x.com", "password": "Str0ng!Pass", "roleName": "admin",
	}))
	list := s.do(http.MethodGet, "/api/v1/users", admin.Token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	users := decodeData[[]models.User](t, list)
	assert.Len(t, users, 2)

	roles := s.do(http.MethodGet, "/api/v1/roles", admin.Token, nil)
	require.Equal(t, http.StatusOK, roles.Code)
	assert.Len(t, decodeData[[]models.Role](t, roles), 4)

	missing := s.do(http.MethodGet, "/api/v1/users/9999", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/users/abc", admin.Token, nil).Code)
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t, testConfig())

	health := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Contains(t, string(health.Data), `"database":"up"`)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/nope", "", nil).Code)
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	s := newTestServer(t, cfg)
	creds := map[string]string{"email": "ghost@x.com", "password": "Str0ng!Pass"}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/api/v1/auth/login", "", creds).Code)
	// health is not rate limited
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	s := newTestServer(t, cfg)

	var codes []int
	for i := 0; i < 4; i++ {
		req, err := http.NewRequest(http.MethodPost, s.ts.URL+"/api/v1/auth/login",
			bytes.NewReader([]byte(`{"email":"ghost@x.com","password":"Str0ng!Pass"}`)))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		resp, err := s.ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitHonorsTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 1
	cfg.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8"), netip.MustParsePrefix("::1/128")}
	s := newTestServer(t, cfg)

	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, s.ts.URL+"/api/v1/auth/login",
			bytes.NewReader([]byte(`{"email":"ghost@x.com","password":"Str0ng!Pass"}`)))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		resp, err := s.ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "each forwarded client has its own window")
	}
}

func TestProfileAndChangePassword(t *testing.T) {
	s := newTestServer(t, testConfig())
	reg := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Bob", "username": "bob", "email": "bob@istc.test", "password": "Str0ng!Pass",
	})
	require.Equal(t, http.StatusCreated, reg.Code)
	token := decodeData[authData](t, reg).Token

	upd := s.do(http.MethodPut, "/api/v1/auth/profile", token, map[string]string{"name": "Robert"})
	require.Equal(t, http.StatusOK, upd.Code)
	profile := decodeData[models.User](t, upd)
	assert.Equal(t, "Robert", profile.Name)
	assert.Equal(t, "bob", profile.Username)

	same := s.do(http.MethodPost, "/api/v1/auth/change-password", token, map[string]string{
		"currentPassword": "Str0ng!Pass", "newPassword": "Str0ng!Pass", "confirmPassword": "Str0ng!Pass",
	})
	assert.Equal(t, http.StatusBadRequest, same.Code)

	wrong := s.do(http.MethodPost, "/api/v1/auth/change-password", token, map[string]string{
		"currentPassword": "Wr0ng!Pass", "newPassword": "N3w!Passw0rd", "confirmPassword": "N3w!Passw0rd",
	})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	ok := s.do(http.MethodPost, "/api/v1/auth/change-password", token, map[string]string{
		"currentPassword": "Str0ng!Pass", "newPassword": "N3w!Passw0rd", "confirmPassword": "N3w!Passw0rd",
	})
	require.Equal(t, http.StatusOK, ok.Code)

	login := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "bob@istc.test", "password": "N3w!Passw0rd",
	})
	assert.Equal(t, http.StatusOK, login.Code)
}

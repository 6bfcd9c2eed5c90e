package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/pos-backend/internal/auth"
	"github.com/hongminglow/pos-backend/internal/middleware"
	"github.com/hongminglow/pos-backend/internal/models"
	"github.com/hongminglow/pos-backend/internal/storage/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func tokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  "handler-access-secret",
		RefreshSecret: "handler-refresh-secret",
	}
}

type testEnv struct {
	router http.Handler
	store  *memory.Store
	tokens *auth.TokenManager
	admin  models.User
	seller models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager(tokenConfig())
	require.NoError(t, err)

	hash := func(pw string) string {
		h, err := hasher.Hash(pw)
		require.NoError(t, err)
		return h
	}
	branchID := int64(4)
	branchName := "Sucursal Centro"

	store := memory.New()
	env := &testEnv{store: store, tokens: tokens}
	env.admin = store.Add(models.User{
		FirstName: "Admin", LastName: "Sistema", Email: "admin@empresa.com",
		PasswordHash: hash("Admin123!"), Role: models.RoleAdministrator, Active: true,
	})
	env.seller = store.Add(models.User{
		FirstName: "Lucia", Email: "lucia@empresa.com", PasswordHash: hash("Vende123!"),
		Role: models.RoleSalesperson, BranchID: &branchID, BranchName: &branchName, Active: true,
	})
	store.Add(models.User{
		FirstName: "Old", Email: "old@empresa.com", PasswordHash: hash("Old123!"),
		Role: models.RoleSalesperson, Active: false,
	})

	svc := auth.NewService(store, store, tokens, hasher, auth.WithLogger(discard))
	h := NewAuthHandler(svc, discard, false)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		h.Register(r, middleware.Authenticate(svc, discard))
	})
	env.router = r
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pos-terminal/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

type loginData struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func (e *testEnv) login(t *testing.T, email, password string) loginData {
	t.Helper()
	code, env := e.do(t, http.MethodPost, "/api/auth/login",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, code, env.Message)
	var data loginData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/api/auth/login",
		`{"email":"admin@empresa.com","password":"Admin123!"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, "login successful", body.Message)

	var data loginData
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, models.RoleAdministrator, data.User.Role)
	assert.Equal(t, env.admin.ID, data.User.ID)
	assert.NotEmpty(t, data.AccessToken)
	assert.NotEmpty(t, data.RefreshToken)
	assert.NotNil(t, data.User.LastAccessAt)
	assert.NotContains(t, string(body.Data), "password")

	payload, err := env.tokens.VerifyAccessToken(data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@empresa.com", payload.Email)

	events := env.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionLogin, events[0].Action)
	assert.Equal(t, "pos-terminal/1.0", events[0].UserAgent)
	assert.Equal(t, "192.0.2.1", events[0].IP)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty body", "", http.StatusBadRequest, auth.ErrMissingCredentials.Error()},
		{"missing password", `{"email":"admin@empresa.com"}`, http.StatusBadRequest, auth.ErrMissingCredentials.Error()},
		{"malformed json", `{"email":`, http.StatusBadRequest, "invalid JSON payload"},
		{"unknown email", `{"email":"nobody@empresa.com","password":"Admin123!"}`, http.StatusUnauthorized, "invalid credentials"},
		{"wrong password", `{"email":"admin@empresa.com","password":"nope"}`, http.StatusUnauthorized, "invalid credentials"},
		{"inactive user", `{"email":"old@empresa.com","password":"Old123!"}`, http.StatusForbidden, "inactive user, contact an administrator"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/auth/login", tc.body, "")
			assert.Equal(t, tc.status, code)
			assert.False(t, body.Success)
			assert.Equal(t, tc.message, body.Message)
		})
	}
	assert.Empty(t, env.store.Events())
}

func TestLoginStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailLookup = assert.AnError

	code, body := env.do(t, http.MethodPost, "/api/auth/login",
		`{"email":"admin@empresa.com","password":"Admin123!"}`, "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "failed to log in", body.Message)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "lucia@empresa.com", "Vende123!")

	code, body := env.do(t, http.MethodPost, "/api/auth/refresh",
		`{"refreshToken":"`+session.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "token refreshed", body.Message)

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	payload, err := env.tokens.VerifyAccessToken(data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, env.seller.ID, payload.UserID)
	require.NotNil(t, payload.BranchID)
	assert.Equal(t, int64(4), *payload.BranchID)
}

func TestRefreshRejected(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "lucia@empresa.com", "Vende123!")

	foreign, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  "someone-else-access",
		RefreshSecret: "someone-else-refresh",
	})
	require.NoError(t, err)
	forged, err := foreign.IssueRefreshToken(auth.PayloadFor(env.seller))
	require.NoError(t, err)

	cases := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"missing token", `{}`, http.StatusBadRequest, auth.ErrMissingRefreshToken.Error()},
		{"wrong secret", `{"refreshToken":"` + forged + `"}`, http.StatusUnauthorized, "invalid or expired refresh token"},
		{"access token used", `{"refreshToken":"` + session.AccessToken + `"}`, http.StatusUnauthorized, "invalid or expired refresh token"},
		{"garbage", `{"refreshToken":"abc.def.ghi"}`, http.StatusUnauthorized, "invalid or expired refresh token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/api/auth/refresh", tc.body, "")
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestRefreshDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "lucia@empresa.com", "Vende123!")

	seller := env.seller
	seller.Active = false
	env.store.Update(seller)

	code, body := env.do(t, http.MethodPost, "/api/auth/refresh",
		`{"refreshToken":"`+session.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, auth.ErrInactiveUser.Error(), body.Message)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "lucia@empresa.com", "Vende123!")

	for _, path := range []string{"/api/auth/profile", "/api/auth/perfil"} {
		code, body := env.do(t, http.MethodGet, path, "", session.AccessToken)
		require.Equal(t, http.StatusOK, code, path)
		var user models.User
		require.NoError(t, json.Unmarshal(body.Data, &user))
		assert.Equal(t, "lucia@empresa.com", user.Email)
		require.NotNil(t, user.BranchName)
		assert.Equal(t, "Sucursal Centro", *user.BranchName)
	}
}

func TestProfileRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	stale, err := auth.NewTokenManager(tokenConfig(), auth.WithClock(func() time.Time {
		return time.Now().Add(-48 * time.Hour)
	}))
	require.NoError(t, err)
	expired, err := stale.IssueAccessToken(auth.PayloadFor(env.admin))
	require.NoError(t, err)

	refresh, err := env.tokens.IssueRefreshToken(auth.PayloadFor(env.admin))
	require.NoError(t, err)

	code, body := env.do(t, http.MethodGet, "/api/auth/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token not provided", body.Message)

	code, body = env.do(t, http.MethodGet, "/api/auth/profile", "", expired)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid or expired token", body.Message)

	code, _ = env.do(t, http.MethodGet, "/api/auth/profile", "", refresh)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProfileDeletedUser(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "admin@empresa.com", "Admin123!")
	env.store.Delete(env.admin.ID)

	code, body := env.do(t, http.MethodGet, "/api/auth/profile", "", session.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "user not found", body.Message)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "admin@empresa.com", "Admin123!")

	code, body := env.do(t, http.MethodPost, "/api/auth/logout", "", session.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, "logout successful", body.Message)
	assert.JSONEq(t, `{}`, string(body.Data))

	events := env.store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.ActionLogout, events[1].Action)
	assert.Equal(t, env.admin.ID, events[1].UserID)

	// Stateless tokens remain usable until expiry.
	code, _ = env.do(t, http.MethodGet, "/api/auth/profile", "", session.AccessToken)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogoutSurvivesAuditFailure(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "admin@empresa.com", "Admin123!")
	env.store.FailAppend = assert.AnError

	code, _ := env.do(t, http.MethodPost, "/api/auth/logout", "", session.AccessToken)
	assert.Equal(t, http.StatusOK, code)
}

func TestLoginBodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	handler := middleware.MaxBodyBytes(32)(env.router)

	body := bytes.Repeat([]byte("a"), 128)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"`+string(body)+`"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

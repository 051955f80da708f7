package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthDeps(t *testing.T) *Dependencies {
	t.Helper()
	logger := discardLogger()
	return &Dependencies{
		Logger:    logger,
		Directory: auth.NewSeededDirectory(logger),
		Tokens:    auth.NewTokenService([]byte("test-signing-key"), "jobproc-test", "jobproc-clients", 8*time.Hour, logger),
		CookieTTL: time.Hour,
	}
}

func authRouter(deps *Dependencies) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAuthHandler(deps)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/validate-token", h.ValidateToken)
	r.GET("/auth/profile", func(c *gin.Context) {
		// Stand-in for the auth middleware.
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token != "" && deps.Tokens.Verify(token) {
			c.Set(ClaimsContextKey, deps.Tokens.Claims(token))
		}
		h.Profile(c)
	})
	return r
}

func TestLogin_Success(t *testing.T) {
	deps := newAuthDeps(t)
	r := authRouter(deps)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"admin123"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, []string{auth.RoleAdmin, auth.RoleHangfireAdmin}, resp.Roles)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), expiresAt, time.Minute)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
}

func TestLogin_BadCredentials(t *testing.T) {
	r := authRouter(newAuthDeps(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"wrongpass"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no cookie on failed login")
}

func TestLogin_MissingFields(t *testing.T) {
	r := authRouter(newAuthDeps(t))

	tests := []struct {
		name string
		body string
	}{
		{name: "missing password", body: `{"username":"admin"}`},
		{name: "missing username", body: `{"password":"admin123"}`},
		{name: "empty body", body: `{}`},
		{name: "not json", body: `username=admin`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestValidateToken(t *testing.T) {
	deps := newAuthDeps(t)
	r := authRouter(deps)

	token, _, err := deps.Tokens.Issue("hangfire_user", []string{auth.RoleHangfireUser})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", strings.NewReader(token))
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ValidateTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, "hangfire_user", resp.Username)
		assert.Equal(t, []string{auth.RoleHangfireUser}, resp.Roles)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", strings.NewReader("not-a-token"))
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ValidateTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.Empty(t, resp.Username)
	})

	t.Run("empty body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", strings.NewReader("  "))
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProfile(t *testing.T) {
	deps := newAuthDeps(t)
	r := authRouter(deps)

	t.Run("admin profile", func(t *testing.T) {
		token, _, err := deps.Tokens.Issue("admin", []string{auth.RoleAdmin, auth.RoleHangfireAdmin})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ProfileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "admin", resp.Username)
		assert.True(t, resp.CanAccessHangfire)
	})

	t.Run("regular user cannot access dashboard", func(t *testing.T) {
		token, _, err := deps.Tokens.Issue("hangfire_user", []string{auth.RoleHangfireUser})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.ProfileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.CanAccessHangfire)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jobproc/jobproc/internal/api/dto"
	"github.com/jobproc/jobproc/internal/auth"
)

// CookieName is the token cookie set on login and honored as a
// fallback when no Authorization header is present.
const CookieName = "HangfireToken"

// ClaimsContextKey is the gin context key under which the auth
// middleware stores the verified claims.
const ClaimsContextKey = "authClaims"

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	logger    *slog.Logger
	directory auth.Directory
	tokens    *auth.TokenService
	cookieTTL time.Duration
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger:    deps.Logger,
		directory: deps.Directory,
		tokens:    deps.Tokens,
		cookieTTL: deps.CookieTTL,
	}
}

// Login handles POST /auth/login
// Authenticates the credentials, issues a token, and sets the token
// cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid login request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username and password are required",
		})
		return
	}

	identity := h.directory.Authenticate(req.Username, req.Password)
	if identity == nil {
		h.logger.Warn("Login rejected",
			slog.String("username", req.Username),
			slog.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid username or password",
		})
		return
	}

	token, expiresAt, err := h.tokens.Issue(identity.Username, identity.Roles)
	if err != nil {
		h.logger.Error("Failed to issue token",
			slog.String("username", identity.Username),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to issue token",
		})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, int(h.cookieTTL.Seconds()), "/", "", true, true)

	h.logger.Info("Login succeeded",
		slog.String("username", identity.Username),
		slog.String("ip", c.ClientIP()),
	)

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     token,
		Username:  identity.Username,
		Roles:     identity.Roles,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// ValidateToken handles POST /auth/validate-token
// Accepts the raw token string as the request body.
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if !h.tokens.Verify(token) {
		c.JSON(http.StatusOK, dto.ValidateTokenResponse{Valid: false})
		return
	}

	claims := h.tokens.Claims(token)
	c.JSON(http.StatusOK, dto.ValidateTokenResponse{
		Valid:    true,
		Username: claims.Username,
		Roles:    claims.Roles,
	})
}

// Profile handles GET /auth/profile
// Requires the auth middleware to have attached verified claims.
func (h *AuthHandler) Profile(c *gin.Context) {
	value, ok := c.Get(ClaimsContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	claims, ok := value.(auth.Claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, dto.ProfileResponse{
		Username:          claims.Username,
		Roles:             claims.Roles,
		CanAccessHangfire: claims.CanAccessDashboard(),
	})
}

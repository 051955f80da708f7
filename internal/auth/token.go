package auth

import (
	"log/slog"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PermissionDashboard is the derived permission claim granted to Admin
// tokens at issuance time.
const PermissionDashboard = "hangfire-dashboard"

// Claims is the decoded claim set of a verified credential. The zero
// value means "no valid claims".
type Claims struct {
	Username   string
	Roles      []string
	Permission string
}

// HasRole reports whether the claim set carries the given role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// CanAccessDashboard is the dashboard admission predicate.
func (c Claims) CanAccessDashboard() bool {
	return c.HasRole(RoleAdmin) ||
		c.HasRole(RoleHangfireAdmin) ||
		c.Permission == PermissionDashboard
}

// tokenClaims is the JWT wire shape of Claims.
type tokenClaims struct {
	Username   string   `json:"username"`
	Roles      []string `json:"roles"`
	Permission string   `json:"permission,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed bearer credentials. The
// signing key is injected explicitly so tests can supply their own.
// Issuance and verification are pure functions of their inputs plus the
// wall clock; the service holds no session state.
type TokenService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewTokenService creates a TokenService with the process-wide symmetric
// signing key.
func NewTokenService(key []byte, issuer, audience string, ttl time.Duration, logger *slog.Logger) *TokenService {
	return &TokenService{
		key:      key,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		logger:   logger,
	}
}

// Issue signs a credential for the subject with the given roles. Admin
// roles additionally receive the dashboard permission grant. Returns the
// signed token and its expiry instant.
func (s *TokenService) Issue(username string, roles []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := tokenClaims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	if slices.Contains(roles, RoleAdmin) {
		claims.Permission = PermissionDashboard
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("Credential issued",
		slog.String("username", username),
		slog.Any("roles", roles),
		slog.Time("expires_at", expiresAt),
	)

	return signed, expiresAt, nil
}

// Verify checks signature, issuer, audience, and lifetime with zero
// clock-skew tolerance. Any malformed input yields a clean false.
func (s *TokenService) Verify(token string) bool {
	_, err := s.parse(token)
	if err != nil {
		s.logger.Warn("Token verification failed",
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Claims re-runs the full verification and decodes the claim set. On
// any failure it returns zero-value claims; callers must never decode
// based on a previously-verified flag.
func (s *TokenService) Claims(token string) Claims {
	parsed, err := s.parse(token)
	if err != nil {
		s.logger.Warn("Failed to extract claims from token",
			slog.String("error", err.Error()),
		)
		return Claims{}
	}
	return Claims{
		Username:   parsed.Username,
		Roles:      parsed.Roles,
		Permission: parsed.Permission,
	}
}

func (s *TokenService) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

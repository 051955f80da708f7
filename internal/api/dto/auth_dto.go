package dto

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token and the authenticated
// identity's roles.
type LoginResponse struct {
	Token     string   `json:"token"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	ExpiresAt string   `json:"expiresAt"`
}

// ValidateTokenResponse reports whether a raw token string verifies.
// Username and roles are only present when valid.
type ValidateTokenResponse struct {
	Valid    bool     `json:"valid"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// ProfileResponse describes the authenticated caller.
type ProfileResponse struct {
	Username          string   `json:"username"`
	Roles             []string `json:"roles"`
	CanAccessHangfire bool     `json:"canAccessHangfire"`
}

// Package auth implements the identity catalog and the signed-token
// credential service gating the API and the jobs dashboard.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"strings"
)

// Role names understood by the authorization layer.
const (
	RoleAdmin         = "Admin"
	RoleHangfireAdmin = "HangfireAdmin"
	RoleHangfireUser  = "HangfireUser"
)

// staticSalt is shared by all identities. A per-identity salt would be
// stronger; kept as-is to stay compatible with existing records.
const staticSalt = "fixed-salt-value"

// Identity is a system user. Immutable for the process lifetime;
// Active=false permanently excludes the identity from authentication.
type Identity struct {
	ID           int
	Username     string
	PasswordHash string
	Roles        []string
	Active       bool
}

// Directory resolves credentials and usernames to identities. The
// in-memory implementation can be swapped for a real directory behind
// the same interface.
type Directory interface {
	// Authenticate returns the identity for a valid username/password
	// pair and nil otherwise. Fails closed on missing or inactive users.
	Authenticate(username, password string) *Identity
	// Lookup returns the identity for a username, nil when unknown.
	Lookup(username string) *Identity
}

// MemoryDirectory is an immutable in-memory identity list built once at
// startup. Safe for concurrent use: read-only after construction.
type MemoryDirectory struct {
	identities []Identity
	logger     *slog.Logger
}

// NewMemoryDirectory creates a directory over the given identities.
func NewMemoryDirectory(identities []Identity, logger *slog.Logger) *MemoryDirectory {
	return &MemoryDirectory{
		identities: identities,
		logger:     logger,
	}
}

// NewSeededDirectory creates the fixed identity catalog used by the
// reference deployment: an admin and a dashboard-only user.
func NewSeededDirectory(logger *slog.Logger) *MemoryDirectory {
	return NewMemoryDirectory([]Identity{
		{
			ID:           1,
			Username:     "admin",
			PasswordHash: HashPassword("admin123"),
			Roles:        []string{RoleAdmin, RoleHangfireAdmin},
			Active:       true,
		},
		{
			ID:           2,
			Username:     "hangfire_user",
			PasswordHash: HashPassword("hangfire123"),
			Roles:        []string{RoleHangfireUser},
			Active:       true,
		},
	}, logger)
}

// Authenticate implements Directory.
func (d *MemoryDirectory) Authenticate(username, password string) *Identity {
	identity := d.Lookup(username)

	if identity == nil || !identity.Active {
		d.logger.Warn("Authentication failed for missing or inactive user",
			slog.String("username", username),
		)
		return nil
	}

	if HashPassword(password) != identity.PasswordHash {
		d.logger.Warn("Invalid password",
			slog.String("username", username),
		)
		return nil
	}

	d.logger.Info("User authenticated",
		slog.String("username", identity.Username),
	)

	return identity
}

// Lookup implements Directory. Usernames match case-insensitively.
func (d *MemoryDirectory) Lookup(username string) *Identity {
	for i := range d.identities {
		if strings.EqualFold(d.identities[i].Username, username) {
			return &d.identities[i]
		}
	}
	return nil
}

// HashPassword hashes a password with SHA-256 over password+salt and
// base64-encodes the digest.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password + staticSalt))
	return base64.StdEncoding.EncodeToString(sum[:])
}

package auth

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryDirectory_Authenticate(t *testing.T) {
	dir := NewMemoryDirectory([]Identity{
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
		{
			ID:           3,
			Username:     "retired",
			PasswordHash: HashPassword("retired123"),
			Roles:        []string{RoleHangfireUser},
			Active:       false,
		},
	}, discardLogger())

	tests := []struct {
		name     string
		username string
		password string
		wantUser string
		wantNil  bool
	}{
		{
			name:     "valid admin credentials",
			username: "admin",
			password: "admin123",
			wantUser: "admin",
		},
		{
			name:     "username is case-insensitive",
			username: "ADMIN",
			password: "admin123",
			wantUser: "admin",
		},
		{
			name:     "valid dashboard user credentials",
			username: "hangfire_user",
			password: "hangfire123",
			wantUser: "hangfire_user",
		},
		{
			name:     "wrong password",
			username: "admin",
			password: "wrongpass",
			wantNil:  true,
		},
		{
			name:     "unknown user",
			username: "nobody",
			password: "admin123",
			wantNil:  true,
		},
		{
			name:     "inactive user with correct password",
			username: "retired",
			password: "retired123",
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := dir.Authenticate(tt.username, tt.password)

			if tt.wantNil {
				assert.Nil(t, identity)
				return
			}

			require.NotNil(t, identity)
			assert.Equal(t, tt.wantUser, identity.Username)
		})
	}
}

func TestNewSeededDirectory(t *testing.T) {
	dir := NewSeededDirectory(discardLogger())

	admin := dir.Authenticate("admin", "admin123")
	require.NotNil(t, admin)
	assert.Equal(t, []string{RoleAdmin, RoleHangfireAdmin}, admin.Roles)
	assert.True(t, admin.Active)

	user := dir.Lookup("hangfire_user")
	require.NotNil(t, user)
	assert.Equal(t, []string{RoleHangfireUser}, user.Roles)

	assert.Nil(t, dir.Lookup("nobody"))
}

func TestHashPassword_Deterministic(t *testing.T) {
	assert.Equal(t, HashPassword("admin123"), HashPassword("admin123"))
	assert.NotEqual(t, HashPassword("admin123"), HashPassword("admin124"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 8080
jwt:
  secret: "0123456789abcdef0123"
security:
  encryption_key: "k"
  uniform_reset_response: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0123456789abcdef0123", cfg.JWT.Secret)
	assert.True(t, cfg.Security.UniformResetResponse)

	// untouched keys keep their defaults
	assert.Equal(t, 720, cfg.JWT.ExpireHours)
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.TTL())
	assert.Equal(t, "token", cfg.JWT.CookieName)
	assert.Equal(t, 10*time.Minute, cfg.Security.ResetTokenTTL)
	assert.Equal(t, 10, cfg.App.PageSize)
	assert.Equal(t, 100, cfg.App.MaxPageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "server:\n  port: 8080\n")
	t.Setenv("FAMFIN_SERVER_PORT", "9090")
	t.Setenv("FAMFIN_JWT_SECRET", "from-the-environment")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-the-environment", cfg.JWT.Secret)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ReturnsIndependentValues(t *testing.T) {
	a, err := Load(writeFile(t, "server:\n  port: 1111\n"))
	require.NoError(t, err)
	b, err := Load(writeFile(t, "server:\n  port: 2222\n"))
	require.NoError(t, err)

	assert.Equal(t, 1111, a.Server.Port)
	assert.Equal(t, 2222, b.Server.Port)
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg, err := Load(writeFile(t, `
server:
  port: 0
  mode: loud
jwt:
  secret: short
log:
  level: chatty
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "server.mode", "jwt.secret", "security.encryption_key", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default().Addr, cfg.Addr)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written")
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9090\"\nping_interval: 10s\nclient_buffer: 4\nbroadcast_on_update: true\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("TICKETSYNC_CLIENT_BUFFER", "16")
	t.Setenv("TICKETSYNC_LOG_LEVEL", "debug")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.PingInterval)
	assert.Equal(t, 16, cfg.ClientBuffer, "env overrides file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.BroadcastOnUpdate)
	assert.Equal(t, Default().HubInbox, cfg.HubInbox, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.JWTRequired = true
	assert.Error(t, cfg.Validate())
	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.ClientBuffer = 0
	assert.Error(t, cfg.Validate())
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "warn"})

	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "PUBLIC_DIR", "CONFIG_PATH", "PERSIST_BACKEND",
		"STATE_FILE", "NATS_URL", "NATS_SUBJECT", "BROADCAST_INTERVAL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Equal(t, BackendFile, cfg.PersistBackend)
	assert.Equal(t, "data/match-state.json", cfg.StateFile)
	assert.Equal(t, time.Second, cfg.BroadcastInterval)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGIN", "https://admin.example")
	t.Setenv("PERSIST_BACKEND", "none")
	t.Setenv("BROADCAST_INTERVAL", "500ms")

	cfg, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://admin.example", cfg.AllowedOrigin)
	assert.Equal(t, BackendNone, cfg.PersistBackend)
	assert.Equal(t, 500*time.Millisecond, cfg.BroadcastInterval)
}

func TestLoadServerConfig_RejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERSIST_BACKEND", "redis")

	_, err := loadServerConfig()
	assert.ErrorContains(t, err, "redis")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 600*time.Second, s.MatchDuration)
	assert.Equal(t, "Team A", s.Court1.Team1)
	assert.Equal(t, "Upcoming Match", s.NextMatch)
}

func TestLoadConfig_OverlaysMatchDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
match:
  duration: 12m
  next_match: Group Stage
  courts:
    court2:
      team1: Lions
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 12*time.Minute, s.MatchDuration)
	assert.Equal(t, "Group Stage", s.NextMatch)
	assert.Equal(t, "Lions", s.Court2.Team1)
	assert.Equal(t, "Team D", s.Court2.Team2)
	assert.Equal(t, "Team A", s.Court1.Team1)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("match: [unclosed"), 0o644))

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Len(t, cfg.Providers, 2)
	assert.Equal(t, DefaultProxies(), cfg.Proxies)
	assert.Equal(t, 7, cfg.Poll.IntervalSec)
	assert.Equal(t, 5, cfg.Poll.RequestTimeoutSec)
	assert.Equal(t, 3, cfg.Provisioning.MaxAttempts)
	assert.Equal(t, 1500, cfg.Provisioning.BackoffMs)
	assert.Equal(t, 3, cfg.Limits.MaxActiveAccounts)
	assert.Equal(t, 5, cfg.Limits.DailyCreations)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
proxies: []
poll:
  interval_sec: 10
provisioning:
  max_attempts: 0
limits:
  daily_creations: 9
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Proxies)
	assert.Equal(t, 10, cfg.Poll.IntervalSec)
	assert.Equal(t, 5, cfg.Poll.RequestTimeoutSec)
	assert.Equal(t, 3, cfg.Provisioning.MaxAttempts)
	assert.Equal(t, 9, cfg.Limits.DailyCreations)
	assert.Len(t, cfg.Providers, 2)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Poll.IntervalSec = 11
	cfg.Providers = cfg.Providers[:1]
	cfg.Providers[0].Proxies = []string{"https://relay.example/?u="}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 11, loaded.Poll.IntervalSec)
	require.Len(t, loaded.Providers, 1)
	assert.Equal(t, "mailtm", loaded.Providers[0].ID)
	assert.Equal(t, AuthBearerToken, loaded.Providers[0].AuthScheme)
	assert.Equal(t, []string{"https://relay.example/?u="}, loaded.Providers[0].Proxies)
}

func TestPollConfig_Durations(t *testing.T) {
	p := PollConfig{IntervalSec: 7, RequestTimeoutSec: 5}
	assert.Equal(t, "7s", p.Interval().String())
	assert.Equal(t, "5s", p.RequestTimeout().String())
}

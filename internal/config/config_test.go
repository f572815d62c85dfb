package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYNCBOARD_API_AUTH_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.ListenAddress)
	assert.Equal(t, "env-secret", cfg.API.AuthSecret)
	assert.Equal(t, BackendMemory, cfg.Coordination.Backend)
	assert.Equal(t, 30*time.Second, cfg.Coordination.LeaseTTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Greater(t, cfg.Websocket.SendBuffer, 0)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("SYNCBOARD_API_AUTH_SECRET", "env-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
api:
  listen_address: ":9090"
coordination:
  backend: redis
  lease_ttl: 45s
cache:
  address: "localhost:6379"
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.API.ListenAddress)
	assert.Equal(t, BackendRedis, cfg.Coordination.Backend)
	assert.Equal(t, 45*time.Second, cfg.Coordination.LeaseTTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Address)
}

func TestValidation(t *testing.T) {
	t.Run("missing auth secret", func(t *testing.T) {
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth_secret")
	})

	t.Run("redis backend needs an address", func(t *testing.T) {
		t.Setenv("SYNCBOARD_API_AUTH_SECRET", "env-secret")
		t.Setenv("SYNCBOARD_COORDINATION_BACKEND", "redis")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.address")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("SYNCBOARD_API_AUTH_SECRET", "env-secret")
		t.Setenv("SYNCBOARD_COORDINATION_BACKEND", "zookeeper")
		_, err := Load("")
		require.Error(t, err)
	})
}

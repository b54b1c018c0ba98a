package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  ttl: "15m"
exam:
  tick: "500ms"
events:
  brokers: "k1:9092, k2:9092"
`), 0o600))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "exam.results", cfg.Events.Topic)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.BrokerList())
	assert.Equal(t, 500*time.Millisecond, TTLDuration(cfg.Exam.Tick, time.Second))
	assert.Equal(t, 15*time.Minute, TTLDuration(cfg.Redis.TTL, time.Minute))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"kafka:9092"}, cfg.BrokerList())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, TTLDuration("2s", time.Minute))
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wordforge/challenge-service/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "localhost", cfg.Postgres.Host)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "daily-scores", cfg.Kafka.Topic)
	require.Equal(t, 10*time.Minute, cfg.Scheduler.RolloverInterval)
	require.Equal(t, 15*time.Minute, cfg.Scheduler.DispatchInterval)
	require.True(t, cfg.Scheduler.Enabled)
	require.True(t, cfg.Scheduler.RunOnStart)
	require.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)
	require.Equal(t, 50*time.Millisecond, cfg.Telegram.SendDelay)
	require.Equal(t, 50, cfg.Daily.DefaultLimit)
	require.Equal(t, 500, cfg.Daily.MaxLimit)
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
postgres:
  host: db.internal
  database: wordforge
telegram:
  bot_token: ${TEST_BOT_TOKEN}
scheduler:
  rollover_interval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "db.internal", cfg.Postgres.Host)
	require.Equal(t, "123:abc", cfg.Telegram.BotToken)
	require.Equal(t, time.Minute, cfg.Scheduler.RolloverInterval)

	// Unset values fall back to defaults
	require.Equal(t, 5432, cfg.Postgres.Port)
	require.Equal(t, 15*time.Minute, cfg.Scheduler.DispatchInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "db",
		Port:     5433,
		User:     "svc",
		Password: "secret",
		Database: "wordforge",
	}
	require.Equal(t, "postgres://svc:secret@db:5433/wordforge?sslmode=disable", cfg.ConnectionString())
}

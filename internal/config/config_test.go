package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"), []byte(content), 0o644))

	return dir
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ORACLE_MODE_LOCAL, cfg.Oracle.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Oracle.MinDelay())
	assert.Equal(t, 3*time.Second, cfg.Oracle.MaxDelay())
	assert.Equal(t, time.Minute, cfg.Purge.Interval())
	assert.Equal(t, time.Hour, cfg.Purge.Retention())
	assert.Equal(t, time.Second, cfg.Commit.Tick())
	assert.Equal(t, 5.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := writeConfig(t, `{
		"host": "127.0.0.1",
		"port": 9000,
		"log_level": "debug",
		"oracle": {"mode": "external", "callback_token": "secret"},
		"purge": {"retention_sec": 120}
	}`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ORACLE_MODE_EXTERNAL, cfg.Oracle.Mode)
	assert.Equal(t, "secret", cfg.Oracle.CallbackToken)
	assert.Equal(t, 2*time.Minute, cfg.Purge.Retention())
	// 未出现在文件中的键保持默认值
	assert.Equal(t, 60, cfg.Purge.IntervalSec)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `{"port": 9000, "oracle": {"mode": "local"}}`)

	t.Setenv("SECRET_GAME_PORT", "9100")
	t.Setenv("SECRET_GAME_ORACLE_MODE", "external")
	t.Setenv("SECRET_GAME_ORACLE_CALLBACK_TOKEN", "from-env")
	t.Setenv("SECRET_GAME_DATABASE_URL", "postgres://localhost/db")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, ORACLE_MODE_EXTERNAL, cfg.Oracle.Mode)
	assert.Equal(t, "from-env", cfg.Oracle.CallbackToken)
	assert.Equal(t, "postgres://localhost/db", cfg.DatabaseURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"port": `},
		{"unknown oracle mode", `{"oracle": {"mode": "chain"}}`},
		{"external oracle without token", `{"oracle": {"mode": "external"}}`},
		{"port out of range", `{"port": 70000}`},
		{"delay bounds inverted", `{"oracle": {"min_delay_ms": 200, "max_delay_ms": 100}}`},
		{"zero commit tick", `{"commit": {"tick_ms": 0}}`},
		{"negative rate limit", `{"rate_limit": {"per_second": -1}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

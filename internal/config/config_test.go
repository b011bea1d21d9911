package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/adwatch.db", cfg.GetDatabasePath())
	assert.Equal(t, 3*time.Second, cfg.WatchConfig().RevealThreshold)
	assert.Equal(t, 5*time.Second, cfg.WatchConfig().MinWatchTime)
	assert.Equal(t, 5, cfg.WatchConfig().RequiredViews)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9000, "host": "127.0.0.1"},
		"database": {"driver": "postgres", "url": "postgres://file"},
		"jwt": {"secret": "file-secret"},
		"cors": {"allowedOrigins": ["https://a.example"]},
		"watch": {"revealThresholdSeconds": 2.5, "minWatchSeconds": 4, "requiredViews": 3}
	}`)
	t.Setenv("PORT", "9100")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REQUIRED_VIEWS", "7")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Address())
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2500*time.Millisecond, cfg.WatchConfig().RevealThreshold)
	assert.Equal(t, 7, cfg.WatchConfig().RequiredViews)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"default secret":   `{"jwt": {"secret": "CHANGE_THIS_SECRET_IN_PRODUCTION"}}`,
		"bad port":         `{"server": {"port": 70000}, "jwt": {"secret": "s"}}`,
		"unknown driver":   `{"database": {"driver": "mysql"}, "jwt": {"secret": "s"}}`,
		"postgres no url":  `{"database": {"driver": "postgres"}, "jwt": {"secret": "s"}}`,
		"reveal after min": `{"watch": {"revealThresholdSeconds": 6, "minWatchSeconds": 5}, "jwt": {"secret": "s"}}`,
		"broken json":      `{"server":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDebugAllowsMissingSecret(t *testing.T) {
	t.Setenv("DEBUG", "true")
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "console", cfg.Log.Format)
}

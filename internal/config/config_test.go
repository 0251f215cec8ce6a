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
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, info, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.False(t, info.FileFound)
	assert.False(t, info.PortSpecified)
	assert.Equal(t, 20261, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Database.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.RetryInitialDelay.Std())
	assert.Equal(t, 20, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 8088
cors_origins = ["http://a.example", "http://b.example"]

[database]
max_retries = 5
retry_initial_delay = "250ms"

[pagination]
default_page_size = 50
max_page_size = 200

[log]
level = "debug"
format = "console"
`)

	cfg, info, err := LoadConfigWithInfo(path)
	require.NoError(t, err)

	assert.True(t, info.FileFound)
	assert.True(t, info.PortSpecified)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5, cfg.Database.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.RetryInitialDelay.Std())
	assert.Equal(t, 50, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, "console", cfg.Log.Format)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, "Asia/Shanghai", cfg.Business.Timezone)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RAINGAUGE_PORT", "9090")
	t.Setenv("RAINGAUGE_DB_DRIVER", "pgx")
	t.Setenv("RAINGAUGE_DB_DSN", "postgres://u:p@localhost:5432/mqtt")
	t.Setenv("RAINGAUGE_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/mqtt", cfg.Database.DSN)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv("RAINGAUGE_PORT", "not-a-port")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAINGAUGE_PORT")
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := writeConfig(t, "[server\nport = ")

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	cfg.Pagination.DefaultPageSize = 500
	cfg.Business.Timezone = "Mars/Olympus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "default_page_size")
	assert.Contains(t, err.Error(), "business.timezone")

	cfg = DefaultConfig()
	cfg.Database.Driver = "pgx"
	assert.ErrorContains(t, cfg.Validate(), "database.dsn")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := DefaultConfig()
	cfg.Server.Port = 18080
	cfg.Database.RetryInitialDelay = Duration(time.Second)
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 18080, loaded.Server.Port)
	assert.Equal(t, time.Second, loaded.Database.RetryInitialDelay.Std())
}

func TestDataSourceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DataDir = t.TempDir()

	dsn, err := DataSourceName(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Database.DataDir, "raingauge.db"), dsn)
	assert.DirExists(t, filepath.Join(cfg.Database.DataDir, "exports"))

	cfg.Database.DSN = "file::memory:?cache=shared"
	dsn, err = DataSourceName(cfg)
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?cache=shared", dsn)
}

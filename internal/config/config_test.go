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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, 20, cfg.DataSource.BatchSize)
	assert.Equal(t, 48*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/stock_screener.db", cfg.Database.DSN)
	assert.Equal(t, 7*24*time.Hour, cfg.Screening.MaxAge)
	assert.Equal(t, 15*time.Minute, cfg.Screening.ResultTTL)
	assert.Equal(t, 4, cfg.Screening.RefreshWorkers)
	assert.Equal(t, 256, cfg.Screening.RefreshQueue)
	assert.Equal(t, "0 */5 * * * *", cfg.Schedule.PriceCron)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_source:
  provider: rest
  base_url: http://bars.internal:9000
  batch_size: 10
  batch_pause: 500ms
cache:
  ttl: 24h
screening:
  max_age: 72h
  default_limit: 25
indexes:
  tech:
    symbols: [AAPL, MSFT]
  nasdaq100:
    file: data/nasdaq100.csv
schedule:
  preload_indexes: [dow30]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "rest", cfg.DataSource.Provider)
	assert.Equal(t, 500*time.Millisecond, cfg.DataSource.BatchPause)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 72*time.Hour, cfg.Screening.MaxAge)
	assert.Equal(t, 25, cfg.Screening.DefaultLimit)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Indexes["tech"].Symbols)
	assert.Equal(t, "data/nasdaq100.csv", cfg.Indexes["nasdaq100"].File)
	assert.Equal(t, []string{"dow30"}, cfg.Schedule.PreloadIndexes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://u:p@db/screener?sslmode=disable")
	t.Setenv("SCREENER_ADDR", ":9090")
	t.Setenv("DATA_SOURCE_BATCH_SIZE", "5")

	cfg, err := Load(writeConfig(t, "database:\n  driver: sqlite\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.DataSource.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }},
		{"rest needs url", func(c *Config) { c.DataSource.Provider = "rest" }},
		{"batch size", func(c *Config) { c.DataSource.BatchSize = 500 }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "data_source: [unclosed"))
	assert.Error(t, err)
}

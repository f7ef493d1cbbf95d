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

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Sportmonks.MaxBulkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Sportmonks.RequestDelay)
	assert.Equal(t, 100, cfg.Enrich.BatchSize)
	assert.InDelta(t, 0.8, cfg.Enrich.Threshold, 1e-9)
	assert.Equal(t, []string{"events", "lineups", "statistics"}, cfg.Enrich.Targets)
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/x.db
enrich:
  batch_size: 25
  inter_batch_delay: 5s
  thresholds:
    lineups: 0.9
  targets: [referees, periods]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.Database.DSN())
	assert.Equal(t, 25, cfg.Enrich.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Enrich.InterBatchDelay)
	assert.InDelta(t, 0.9, cfg.Enrich.Thresholds["lineups"], 1e-9)
	assert.Equal(t, []string{"referees", "periods"}, cfg.Enrich.Targets)
}

func TestLoadSecretFromEnv(t *testing.T) {
	t.Setenv("SPORTMONKS_API_TOKEN", "secret-token")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Sportmonks.APIToken)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:   DatabaseConfig{Driver: "sqlite"},
			Sportmonks: SportmonksConfig{MaxBulkSize: 10},
			Enrich:     EnrichConfig{BatchSize: 100, Workers: 4, Threshold: 0.8},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Enrich.BatchSize = 0 }, wantErr: true},
		{name: "too many workers", mutate: func(c *Config) { c.Enrich.Workers = 9 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Enrich.Threshold = 1.2 }, wantErr: true},
		{name: "bad override", mutate: func(c *Config) { c.Enrich.Thresholds = map[string]float64{"events": 0} }, wantErr: true},
		{name: "archive without bucket", mutate: func(c *Config) { c.Archive.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
